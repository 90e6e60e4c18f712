package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/harvestlab/knowledge-harvest/models"
)

const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// client implements the provider interface using OpenAI's chat API.
type client struct {
	apiKey          string
	completionModel string
	temperature     float64
	maxTokens       int
	httpClient      *http.Client
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request represents a request to the OpenAI API
type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// response represents a response from the OpenAI API
type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates a new OpenAI client
func NewClient(apiKey, completionModel string, temperature float64, maxTokens int, timeout time.Duration) *client {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &client{
		apiKey:          apiKey,
		completionModel: completionModel,
		temperature:     temperature,
		maxTokens:       maxTokens,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// GenerateTopicTree asks the model for a topic map for the company and
// returns the raw serialized tree. Callers validate it before persisting.
func (c *client) GenerateTopicTree(ctx context.Context, companyName, seedNotes string) (json.RawMessage, error) {
	systemPrompt := `
You build topic maps for capturing tacit employee knowledge.

RESPONSE FORMAT:
Respond ONLY with valid JSON in the following shape:
{
  "company": "display name",
  "topics": [
    {
      "id": "kebab-case-unique-id",
      "name": "Topic Name",
      "weight": 1,
      "targets": [{"id": "t1", "q": "A concrete question to ask", "required": true}],
      "children": [ ...nested topics, same shape... ]
    }
  ]
}
Topic ids must be unique across the whole tree. Do not include any other
text or explanation.
`
	userPrompt := fmt.Sprintf(`
COMPANY: %q

SEED NOTES FROM THE ORGANIZER:
%s
`, companyName, seedNotes)

	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}
	responseStr, err := c.sendRequest(ctx, messages)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(stripFences(responseStr)), nil
}

// ExtractKnowledge turns a finished interview transcript into knowledge
// atoms, Q&A turns and coverage evidence attributed to tree topics.
func (c *client) ExtractKnowledge(ctx context.Context, companyName string, tree json.RawMessage, transcript []models.TranscriptTurn) (*models.Extraction, error) {
	systemPrompt := `
You extract structured knowledge from interview transcripts.

RULES:
1. Attribute every item to a topic id from the provided topic tree.
2. When an answer addresses a specific target question, set its target_id.
3. Confidence is a 0-1 float reflecting how directly the transcript supports the item.
4. Atom type is one of: fact, procedure, troubleshooting, best_practice.

RESPONSE FORMAT:
Respond ONLY with valid JSON:
{
  "atoms": [{"topic_id": "...", "type": "...", "title": "...", "content": "...", "source_span": "...", "confidence": 0.8}],
  "qa_turns": [{"topic_id": "...", "question": "...", "answer": "...", "speaker_label": "..."}],
  "evidence": [{"topic_id": "...", "target_id": "...", "confidence": 0.8, "excerpt": "...", "atom_index": 0}]
}
An evidence row's optional atom_index points into the atoms array.
Do not include any other text or explanation.
`
	var lines []string
	for _, turn := range transcript {
		lines = append(lines, fmt.Sprintf("[%s] %s", turn.Role, turn.Content))
	}
	userPrompt := fmt.Sprintf(`
COMPANY: %q

TOPIC TREE:
%s

TRANSCRIPT:
%s
`, companyName, string(tree), strings.Join(lines, "\n"))

	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}
	responseStr, err := c.sendRequest(ctx, messages)
	if err != nil {
		return nil, err
	}

	var extraction models.Extraction
	if err := json.Unmarshal([]byte(stripFences(responseStr)), &extraction); err != nil {
		return nil, fmt.Errorf("failed to parse extraction: %w", err)
	}
	return &extraction, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}

// sendRequest sends a request to the OpenAI API
func (c *client) sendRequest(ctx context.Context, messages []Message) (string, error) {
	requestBody := request{
		Model:       c.completionModel,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", openaiAPIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var openaiResp response
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(openaiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return openaiResp.Choices[0].Message.Content, nil
}
