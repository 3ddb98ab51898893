package summarize

import (
	"fmt"
	"sort"

	"github.com/pkoukk/tiktoken-go"
)

// ChildEntry is one child document's contribution to an aggregation prompt.
type ChildEntry struct {
	Key     string // sort key: symbol name, file path or module path
	Summary string
}

// Budget enforces the aggregation input budget with a real tokenizer
// instead of the byte estimate used by the walker.
type Budget struct {
	enc   *tiktoken.Tiktoken
	limit int
}

// NewBudget creates a budget over the cl100k_base encoding.
func NewBudget(limitTokens int) (*Budget, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	return &Budget{enc: enc, limit: limitTokens}, nil
}

// Count returns the token count of text.
func (b *Budget) Count(text string) int {
	return len(b.enc.Encode(text, nil, nil))
}

// Fits reports whether text is within the budget.
func (b *Budget) Fits(text string) bool {
	return b.Count(text) <= b.limit
}

// TrimChildren sorts entries lexicographically by key, then drops middle
// entries until the combined summaries fit the budget. Keeping the first
// and last halves makes the truncation deterministic across runs. The
// returned flag records whether anything was dropped.
func (b *Budget) TrimChildren(entries []ChildEntry) ([]ChildEntry, bool) {
	sorted := make([]ChildEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	truncated := false
	for len(sorted) > 2 && b.totalTokens(sorted) > b.limit {
		mid := len(sorted) / 2
		sorted = append(sorted[:mid], sorted[mid+1:]...)
		truncated = true
	}
	return sorted, truncated
}

func (b *Budget) totalTokens(entries []ChildEntry) int {
	total := 0
	for _, e := range entries {
		total += b.Count(e.Key) + b.Count(e.Summary)
	}
	return total
}
