// Package tiers maps a prompt's token count to a generation-model tier.
// The mapping is a data-driven threshold table so thresholds and model
// names change in configuration, not in code.
package tiers

import (
	"fmt"
	"strconv"
	"strings"
)

// Threshold assigns a model to every token count strictly below Below.
type Threshold struct {
	Below int
	Model string
}

// Table is a monotonic, non-overlapping threshold table. Token counts at or
// above every threshold fall through to the fallback model.
type Table struct {
	thresholds []Threshold
	fallback   string
}

// New validates the thresholds (strictly increasing, positive, non-empty
// models) and returns a Table.
func New(thresholds []Threshold, fallback string) (*Table, error) {
	if fallback == "" {
		return nil, fmt.Errorf("tier table needs a fallback model")
	}
	prev := 0
	for i, th := range thresholds {
		if th.Below <= prev {
			return nil, fmt.Errorf("tier threshold %d: bound %d must exceed previous bound %d", i, th.Below, prev)
		}
		if th.Model == "" {
			return nil, fmt.Errorf("tier threshold %d: empty model name", i)
		}
		prev = th.Below
	}
	return &Table{thresholds: thresholds, fallback: fallback}, nil
}

// Default returns the stock three-tier table: small prompts go to the cheap
// model, the largest to the most capable one.
func Default() *Table {
	t, _ := New([]Threshold{
		{Below: 800, Model: "gpt-35-turbo"},
		{Below: 1800, Model: "gpt-4o-mini"},
	}, "gpt-4o")
	return t
}

// Select returns the model tier for a prompt of tokenCount tokens. Pure:
// same input, same tier. Monotonic by construction: a larger prompt never
// selects a cheaper tier.
func (t *Table) Select(tokenCount int) string {
	for _, th := range t.thresholds {
		if tokenCount < th.Below {
			return th.Model
		}
	}
	return t.fallback
}

// Models returns every tier name, cheapest first.
func (t *Table) Models() []string {
	models := make([]string, 0, len(t.thresholds)+1)
	for _, th := range t.thresholds {
		models = append(models, th.Model)
	}
	return append(models, t.fallback)
}

// Parse reads a table from its configuration form:
// "800:gpt-35-turbo,1800:gpt-4o-mini,gpt-4o". Every entry but the last is
// "<bound>:<model>"; the bare last entry is the fallback model.
func Parse(s string) (*Table, error) {
	parts := strings.Split(s, ",")
	fallback := strings.TrimSpace(parts[len(parts)-1])
	if strings.Contains(fallback, ":") {
		return nil, fmt.Errorf("last tier entry %q must be a bare fallback model", fallback)
	}

	var thresholds []Threshold
	for _, part := range parts[:len(parts)-1] {
		part = strings.TrimSpace(part)
		bound, model, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("tier entry %q: want <bound>:<model>", part)
		}
		below, err := strconv.Atoi(strings.TrimSpace(bound))
		if err != nil {
			return nil, fmt.Errorf("tier entry %q: %w", part, err)
		}
		thresholds = append(thresholds, Threshold{Below: below, Model: strings.TrimSpace(model)})
	}
	return New(thresholds, fallback)
}
