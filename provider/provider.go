package provider

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/harvestlab/knowledge-harvest/config"
	"github.com/harvestlab/knowledge-harvest/models"
	openai_provider "github.com/harvestlab/knowledge-harvest/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Provider is the interface the AI collaborator must satisfy: topic map
// generation at seed time and knowledge extraction after an interview.
type Provider interface {
	GenerateTopicTree(ctx context.Context, companyName, seedNotes string) (json.RawMessage, error)
	ExtractKnowledge(ctx context.Context, companyName string, tree json.RawMessage, transcript []models.TranscriptTurn) (*models.Extraction, error)
}

// NewProvider creates a new LLM client based on the provided configuration.
func NewProvider(client Client, cfg config.OpenAIConfig) (Provider, error) {
	switch client {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("openai api key not configured")
		}
		return openai_provider.NewClient(cfg.APIKey, cfg.CompletionModel, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
