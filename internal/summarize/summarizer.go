package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codesmriti/codesmriti/internal/errs"
	"github.com/codesmriti/codesmriti/internal/models"
	"github.com/codesmriti/codesmriti/pkg/config"
)

// Sentence caps per hierarchy level.
const (
	symbolMaxSentences = 3
	fileMaxSentences   = 8
	moduleMaxSentences = 8
	repoMaxSentences   = 12
)

// Result is one produced summary. Degraded means the text is a mechanical
// placeholder, not model output.
type Result struct {
	Text      string
	Degraded  bool
	Truncated bool // aggregation input was trimmed to fit the budget
}

// Summarizer generates summaries bottom-up: symbols, then files, then
// modules, then the repository.
type Summarizer struct {
	llm    LLM
	budget *Budget
	retry  errs.RetryConfig
	log    *slog.Logger
}

// New creates a summarizer.
func New(cfg *config.SummarizerConfig, llm LLM, log *slog.Logger) (*Summarizer, error) {
	budget, err := NewBudget(cfg.InputBudgetTokens)
	if err != nil {
		return nil, err
	}
	return &Summarizer{
		llm:    llm,
		budget: budget,
		retry: errs.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   time.Duration(cfg.BackoffBaseMs) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.BackoffCapMs) * time.Millisecond,
		},
		log: log,
	}, nil
}

const symbolSystem = "You summarize source code. Answer with at most 3 plain " +
	"sentences describing what the symbol does, its inputs and its outputs. " +
	"No markdown, no code blocks."

// SummarizeSymbol summarizes one symbol chunk.
func (s *Summarizer) SummarizeSymbol(ctx context.Context, chunk models.Chunk) Result {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s in %s (%s)\n", chunk.SymbolKind, chunk.SymbolName, chunk.Path, chunk.Language)
	if chunk.Docstring != "" {
		fmt.Fprintf(&b, "Docstring: %s\n", chunk.Docstring)
	}
	if len(chunk.Parameters) > 0 {
		fmt.Fprintf(&b, "Parameters: %s\n", strings.Join(chunk.Parameters, ", "))
	}
	if len(chunk.Decorators) > 0 {
		fmt.Fprintf(&b, "Decorators: %s\n", strings.Join(chunk.Decorators, " "))
	}
	b.WriteString("\n")
	b.WriteString(chunk.Content)

	fallback := fmt.Sprintf("%s %s in %s, lines %d to %d.",
		chunk.SymbolKind, chunk.SymbolName, chunk.Path, chunk.StartLine, chunk.EndLine)

	return s.complete(ctx, symbolSystem, b.String(), fallback, symbolMaxSentences)
}

const fileSystem = "You summarize source files. Answer with at most 8 plain " +
	"sentences covering the file's purpose and its main functions and classes. " +
	"No markdown, no code blocks."

// SummarizeFile summarizes one file from its metadata chunk, optional
// whole-file chunk and the summaries of its symbols.
func (s *Summarizer) SummarizeFile(ctx context.Context, group models.FileChunks, symbols []ChildEntry) Result {
	var meta, whole *models.Chunk
	for i := range group.Chunks {
		switch group.Chunks[i].Kind {
		case models.ChunkKindMetadata:
			meta = &group.Chunks[i]
		case models.ChunkKindWholeFile:
			whole = &group.Chunks[i]
		}
	}

	trimmed, truncated := s.budget.TrimChildren(symbols)

	var b strings.Builder
	fmt.Fprintf(&b, "File %s (%s, %d lines)\n", group.Path, group.Language, group.LineCount)
	if meta != nil {
		if meta.Docstring != "" {
			fmt.Fprintf(&b, "Module docstring: %s\n", meta.Docstring)
		}
		fmt.Fprintf(&b, "Top-level: %d functions, %d classes\n", meta.FunctionCount, meta.ClassCount)
	}
	if whole != nil {
		b.WriteString("\nSource:\n")
		b.WriteString(whole.Content)
	} else if meta != nil {
		b.WriteString("\nFile head:\n")
		b.WriteString(meta.Content)
	}
	if len(trimmed) > 0 {
		b.WriteString("\nSymbol summaries:\n")
		for _, e := range trimmed {
			fmt.Fprintf(&b, "- %s: %s\n", e.Key, e.Summary)
		}
	}

	fallback := fmt.Sprintf("File %s (%s, %d lines) with %d summarized symbols.",
		group.Path, group.Language, group.LineCount, len(symbols))

	result := s.complete(ctx, fileSystem, b.String(), fallback, fileMaxSentences)
	result.Truncated = result.Truncated || truncated
	return result
}

const moduleSystem = "You summarize code modules from the summaries of their " +
	"contents. Answer with at most 8 plain sentences describing the module's " +
	"responsibility. No markdown, no code blocks."

// SummarizeModule aggregates the summaries of a folder's files and child
// modules. Callers pass fresh summaries for changed files and stored
// summaries for unchanged ones.
func (s *Summarizer) SummarizeModule(ctx context.Context, path string, children []ChildEntry) Result {
	trimmed, truncated := s.budget.TrimChildren(children)

	name := path
	if name == "" {
		name = "repository root"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Module %s containing %d entries:\n", name, len(children))
	for _, e := range trimmed {
		fmt.Fprintf(&b, "- %s: %s\n", e.Key, e.Summary)
	}

	fallback := fmt.Sprintf("Module %s containing %d entries.", name, len(children))

	result := s.complete(ctx, moduleSystem, b.String(), fallback, moduleMaxSentences)
	result.Truncated = result.Truncated || truncated
	return result
}

const repoSystem = "You summarize code repositories from the summaries of " +
	"their top-level modules. Answer with at most 12 plain sentences covering " +
	"the repository's purpose and architecture. No markdown, no code blocks."

// SummarizeRepo aggregates the top-level module summaries into the
// repository summary.
func (s *Summarizer) SummarizeRepo(ctx context.Context, repoID string, languages []string, children []ChildEntry) Result {
	trimmed, truncated := s.budget.TrimChildren(children)

	var b strings.Builder
	fmt.Fprintf(&b, "Repository %s", repoID)
	if len(languages) > 0 {
		fmt.Fprintf(&b, " (languages: %s)", strings.Join(languages, ", "))
	}
	fmt.Fprintf(&b, " with %d top-level modules:\n", len(children))
	for _, e := range trimmed {
		fmt.Fprintf(&b, "- %s: %s\n", e.Key, e.Summary)
	}

	fallback := fmt.Sprintf("Repository %s with %d top-level modules.", repoID, len(children))

	result := s.complete(ctx, repoSystem, b.String(), fallback, repoMaxSentences)
	result.Truncated = result.Truncated || truncated
	return result
}

// complete runs one summarization with retries. Any terminal failure, and
// any answer with no prose in it, degrades to the mechanical fallback.
func (s *Summarizer) complete(ctx context.Context, system, user, fallback string, maxSentences int) Result {
	text, err := errs.RetryWithResult(ctx, s.retry, func() (string, error) {
		return s.llm.Complete(ctx, system, user)
	})
	if err != nil {
		s.log.Warn("summary degraded to placeholder", "error", err)
		return Result{Text: fallback, Degraded: true}
	}

	text = strings.TrimSpace(text)
	if !hasProse(text) {
		s.log.Warn("summary degraded: model returned no prose")
		return Result{Text: fallback, Degraded: true}
	}

	return Result{Text: clipSentences(text, maxSentences)}
}

// hasProse reports whether text contains at least one plain sentence
// outside code fences and markdown structure.
func hasProse(text string) bool {
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence || trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "|") ||
			strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") ||
			strings.HasPrefix(trimmed, "> ") {
			continue
		}
		if len(strings.Fields(trimmed)) >= 3 {
			return true
		}
	}
	return false
}

// clipSentences keeps at most n sentences, splitting on terminal
// punctuation followed by whitespace.
func clipSentences(text string, n int) string {
	count := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) {
				return text
			}
			if text[i+1] == ' ' || text[i+1] == '\n' {
				count++
				if count == n {
					return text[:i+1]
				}
			}
		}
	}
	return text
}
