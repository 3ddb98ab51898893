package walker

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codesmriti/codesmriti/internal/errs"
	"github.com/codesmriti/codesmriti/internal/models"
	"github.com/codesmriti/codesmriti/pkg/config"
)

// bytesPerTokenEstimate converts byte length to the rough token count used
// by the whole-file threshold: tokens ~= 0.75 x bytes.
const bytesPerTokenEstimate = 0.75

// Chunker turns one retained file into its ordered chunk stream: a
// metadata chunk first, then either a whole-file chunk or symbol chunks.
type Chunker struct {
	cfg      *config.WalkerConfig
	registry *Registry
	log      *slog.Logger
}

// NewChunker creates a chunker over the parser registry.
func NewChunker(cfg *config.WalkerConfig, registry *Registry, log *slog.Logger) *Chunker {
	return &Chunker{cfg: cfg, registry: registry, log: log}
}

// ChunkFile produces the chunk group for one file. The returned group is
// self-contained: summarization never reads the file again.
func (c *Chunker) ChunkFile(path, language string, content []byte) (models.FileChunks, error) {
	text := string(content)
	lineCount := strings.Count(text, "\n") + 1

	group := models.FileChunks{
		Path:      path,
		Language:  language,
		Commit:    BlobHash(content),
		LineCount: lineCount,
	}

	estTokens := int(float64(len(content)) * bytesPerTokenEstimate)

	var bodyChunks []models.Chunk
	parser, hasParser := c.registry.Get(language)

	if !hasParser {
		// No syntax tree for this language: whole file regardless of size,
		// truncated at the token threshold.
		chunk := c.wholeFileChunk(path, language, text, lineCount, estTokens >= c.cfg.FileTokenThreshold)
		bodyChunks = []models.Chunk{chunk}
	} else {
		symbols, err := parser.Chunk(content, path)
		switch {
		case err != nil && !errors.Is(err, errs.ErrParseFailure):
			return group, fmt.Errorf("chunk %s: %w", path, err)
		case err != nil:
			c.log.Warn("syntax tree unavailable, degrading to whole-file chunk",
				"path", path, "error", err)
			group.ParseDegraded = true
			bodyChunks = []models.Chunk{c.wholeFileChunk(path, language, text, lineCount, true)}
		default:
			// Small files additionally carry a whole-file chunk: the whole
			// source fits one summarization call. Large files rely on the
			// symbol chunks alone.
			if estTokens < c.cfg.FileTokenThreshold {
				bodyChunks = append(bodyChunks, c.wholeFileChunk(path, language, text, lineCount, false))
			}
			bodyChunks = append(bodyChunks, symbols...)
		}
	}

	meta := c.metadataChunk(path, language, text, bodyChunks)
	group.Chunks = append([]models.Chunk{meta}, bodyChunks...)

	return group, nil
}

// metadataChunk carries the file head, symbol counts and the module
// docstring. It always precedes the body chunks.
func (c *Chunker) metadataChunk(path, language, text string, body []models.Chunk) models.Chunk {
	head := text
	lines := strings.SplitAfterN(text, "\n", c.cfg.MetadataLines+1)
	if len(lines) > c.cfg.MetadataLines {
		head = strings.Join(lines[:c.cfg.MetadataLines], "")
	}
	if len(head) > c.cfg.MetadataMaxBytes {
		head = truncateAtWhitespace(head, c.cfg.MetadataMaxBytes)
	}

	functions, classes := 0, 0
	for _, chunk := range body {
		if chunk.Kind != models.ChunkKindSymbol || chunk.ParentSymbol != "" {
			continue
		}
		switch chunk.SymbolKind {
		case models.SymbolKindClass:
			classes++
		case models.SymbolKindFunction:
			functions++
		}
	}

	headLines := strings.Count(head, "\n") + 1

	return models.Chunk{
		Path:          path,
		Language:      language,
		StartLine:     1,
		EndLine:       headLines,
		Kind:          models.ChunkKindMetadata,
		Content:       head,
		Docstring:     moduleDocstring(language, text),
		FunctionCount: functions,
		ClassCount:    classes,
	}
}

func (c *Chunker) wholeFileChunk(path, language, text string, lineCount int, truncate bool) models.Chunk {
	content := text
	truncated := false
	if truncate {
		// Token threshold expressed in bytes via the estimate ratio.
		maxBytes := int(float64(c.cfg.FileTokenThreshold) / bytesPerTokenEstimate)
		if len(content) > maxBytes {
			content = truncateAtWhitespace(content, maxBytes)
			truncated = true
		}
	}

	return models.Chunk{
		Path:      path,
		Language:  language,
		StartLine: 1,
		EndLine:   lineCount,
		Kind:      models.ChunkKindWholeFile,
		Content:   content,
		Truncated: truncated,
	}
}

// moduleDocstring extracts a leading file-level docstring where the
// language has the convention.
func moduleDocstring(language, text string) string {
	if language != "python" {
		return ""
	}

	rest := strings.TrimLeft(text, " \t\r\n")
	for strings.HasPrefix(rest, "#") {
		idx := strings.IndexByte(rest, '\n')
		if idx < 0 {
			return ""
		}
		rest = strings.TrimLeft(rest[idx+1:], " \t\r\n")
	}

	for _, q := range []string{`"""`, `'''`} {
		if !strings.HasPrefix(rest, q) {
			continue
		}
		end := strings.Index(rest[len(q):], q)
		if end < 0 {
			return ""
		}
		return strings.TrimSpace(rest[len(q) : len(q)+end])
	}
	return ""
}

// truncateAtWhitespace clips s to at most max bytes, backing up to the last
// whitespace so no token is cut mid-word.
func truncateAtWhitespace(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if idx := strings.LastIndexAny(cut, " \t\n"); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}
