// Package topictree defines the hierarchical map of knowledge areas and
// target questions maintained per company, with parsing and traversal
// helpers shared by the coverage calculator and the document assembler.
package topictree

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tree is the persisted topic map for a company. Topic order is
// presentation order.
type Tree struct {
	Company string  `json:"company"`
	Topics  []Topic `json:"topics"`
}

// Topic is a node in the tree. IDs are expected to be unique across the
// whole tree for a company, not just among siblings.
type Topic struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Weight   int      `json:"weight,omitempty"`
	Targets  []Target `json:"targets,omitempty"`
	Children []Topic  `json:"children,omitempty"`
}

// Target is a question prompt a topic expects an answer to.
type Target struct {
	ID       string `json:"id"`
	Q        string `json:"q"`
	Required bool   `json:"required,omitempty"`
}

// MalformedError reports unparseable or structurally invalid persisted
// tree data.
type MalformedError struct {
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed topic tree: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed topic tree: %s", e.Reason)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Parse decodes a persisted tree blob. Structural violations (empty topic
// ids, duplicate target ids within a topic) are rejected as malformed;
// duplicate topic ids across the tree are left to Validate so that stale
// persisted trees still load for read paths.
func Parse(data []byte) (*Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, &MalformedError{Reason: "invalid json", Err: err}
	}
	if err := checkTopics(t.Topics); err != nil {
		return nil, err
	}
	return &t, nil
}

func checkTopics(topics []Topic) error {
	for _, tp := range topics {
		if strings.TrimSpace(tp.ID) == "" {
			return &MalformedError{Reason: fmt.Sprintf("topic %q has empty id", tp.Name)}
		}
		seen := make(map[string]struct{}, len(tp.Targets))
		for _, tg := range tp.Targets {
			if strings.TrimSpace(tg.ID) == "" {
				return &MalformedError{Reason: fmt.Sprintf("topic %q has target with empty id", tp.ID)}
			}
			if _, ok := seen[tg.ID]; ok {
				return &MalformedError{Reason: fmt.Sprintf("topic %q has duplicate target id %q", tp.ID, tg.ID)}
			}
			seen[tg.ID] = struct{}{}
		}
		if err := checkTopics(tp.Children); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects duplicate topic ids anywhere in the tree. Applied at
// tree creation time; read paths tolerate duplicates via Flatten's
// later-wins rule.
func (t *Tree) Validate() error {
	seen := make(map[string]struct{})
	var walk func(topics []Topic) error
	walk = func(topics []Topic) error {
		for _, tp := range topics {
			if _, ok := seen[tp.ID]; ok {
				return &MalformedError{Reason: fmt.Sprintf("duplicate topic id %q", tp.ID)}
			}
			seen[tp.ID] = struct{}{}
			if err := walk(tp.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(t.Topics)
}

// Flatten returns a depth-first id -> node map and the matching id order.
// On duplicate ids the later node wins silently; the order slice keeps the
// first occurrence position.
func (t *Tree) Flatten() (map[string]*Topic, []string) {
	nodes := make(map[string]*Topic)
	var order []string
	var walk func(topics []Topic)
	walk = func(topics []Topic) {
		for i := range topics {
			tp := &topics[i]
			if _, ok := nodes[tp.ID]; !ok {
				order = append(order, tp.ID)
			}
			nodes[tp.ID] = tp
			walk(tp.Children)
		}
	}
	walk(t.Topics)
	return nodes, order
}

// CountTopics returns the total number of nodes in the tree.
func (t *Tree) CountTopics() int {
	var count func(topics []Topic) int
	count = func(topics []Topic) int {
		n := len(topics)
		for _, tp := range topics {
			n += count(tp.Children)
		}
		return n
	}
	return count(t.Topics)
}
