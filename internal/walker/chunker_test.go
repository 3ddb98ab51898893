package walker

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/codesmriti/codesmriti/internal/models"
	"github.com/codesmriti/codesmriti/pkg/config"
)

const pythonSource = `"""Small arithmetic helpers."""


def add(a, b):
    """Add two numbers.

    Returns the sum.
    """
    result = a + b
    return result


def sub(a, b):
    """Subtract b from a."""
    result = a - b
    return result


class Greeter:
    """Greets people."""

    def hello(self, name):
        """Say hello to name."""
        message = "hello " + name
        return message
`

func newTestChunker(t *testing.T) *Chunker {
	t.Helper()
	cfg := config.DefaultConfig()
	return NewChunker(&cfg.Walker, NewRegistry(), slog.Default())
}

func findSymbol(chunks []models.Chunk, name string) *models.Chunk {
	for i := range chunks {
		if chunks[i].Kind == models.ChunkKindSymbol && chunks[i].SymbolName == name {
			return &chunks[i]
		}
	}
	return nil
}

func TestChunkFilePythonSymbols(t *testing.T) {
	c := newTestChunker(t)

	group, err := c.ChunkFile("util.py", "python", []byte(pythonSource))
	if err != nil {
		t.Fatalf("ChunkFile: %v", err)
	}

	if group.Commit == "" {
		t.Errorf("missing file commit hash")
	}
	if group.ParseDegraded {
		t.Errorf("unexpected parse degradation")
	}

	if group.Chunks[0].Kind != models.ChunkKindMetadata {
		t.Fatalf("first chunk is %s, want metadata", group.Chunks[0].Kind)
	}
	meta := group.Chunks[0]
	if meta.FunctionCount != 2 {
		t.Errorf("metadata function count = %d, want 2", meta.FunctionCount)
	}
	if meta.ClassCount != 1 {
		t.Errorf("metadata class count = %d, want 1", meta.ClassCount)
	}
	if meta.Docstring != "Small arithmetic helpers." {
		t.Errorf("module docstring = %q", meta.Docstring)
	}

	add := findSymbol(group.Chunks, "add")
	if add == nil {
		t.Fatalf("no chunk for add")
	}
	if add.SymbolKind != models.SymbolKindFunction {
		t.Errorf("add kind = %s", add.SymbolKind)
	}
	if !strings.HasPrefix(add.Docstring, "Add two numbers.") {
		t.Errorf("add docstring = %q", add.Docstring)
	}
	if len(add.Parameters) != 2 {
		t.Errorf("add parameters = %v", add.Parameters)
	}

	greeter := findSymbol(group.Chunks, "Greeter")
	if greeter == nil {
		t.Fatalf("no chunk for Greeter")
	}
	if greeter.SymbolKind != models.SymbolKindClass {
		t.Errorf("Greeter kind = %s", greeter.SymbolKind)
	}
	if strings.Contains(greeter.Content, "def hello") {
		t.Errorf("class header chunk includes method body")
	}

	hello := findSymbol(group.Chunks, "Greeter.hello")
	if hello == nil {
		t.Fatalf("no chunk for Greeter.hello")
	}
	if hello.SymbolKind != models.SymbolKindMethod {
		t.Errorf("hello kind = %s", hello.SymbolKind)
	}
	if hello.ParentSymbol != "Greeter" {
		t.Errorf("hello parent = %q", hello.ParentSymbol)
	}
}

func TestChunkFileSmallFileCarriesWholeFileChunk(t *testing.T) {
	c := newTestChunker(t)

	group, err := c.ChunkFile("util.py", "python", []byte(pythonSource))
	if err != nil {
		t.Fatalf("ChunkFile: %v", err)
	}

	var whole *models.Chunk
	for i := range group.Chunks {
		if group.Chunks[i].Kind == models.ChunkKindWholeFile {
			whole = &group.Chunks[i]
		}
	}
	if whole == nil {
		t.Fatalf("small file has no whole-file chunk")
	}
	if whole.Truncated {
		t.Errorf("small whole-file chunk truncated")
	}
}

func TestChunkFileUnknownLanguageDegrades(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Walker.FileTokenThreshold = 30
	c := NewChunker(&cfg.Walker, NewRegistry(), slog.Default())

	content := strings.Repeat("some plain words here ", 20)
	group, err := c.ChunkFile("notes.txt", "text", []byte(content))
	if err != nil {
		t.Fatalf("ChunkFile: %v", err)
	}

	if len(group.Chunks) != 2 {
		t.Fatalf("chunks = %d, want metadata + whole-file", len(group.Chunks))
	}
	whole := group.Chunks[1]
	if whole.Kind != models.ChunkKindWholeFile {
		t.Fatalf("second chunk kind = %s", whole.Kind)
	}
	if !whole.Truncated {
		t.Errorf("oversized unparsed file not truncated")
	}
	if len(whole.Content) >= len(content) {
		t.Errorf("truncation did not shorten content")
	}
}

func TestChunkFilePythonDecorators(t *testing.T) {
	src := `@staticmethod
def tagged():
    """Tagged function."""
    a = 1
    b = 2
    return a + b
`
	c := newTestChunker(t)
	group, err := c.ChunkFile("deco.py", "python", []byte(src))
	if err != nil {
		t.Fatalf("ChunkFile: %v", err)
	}

	fn := findSymbol(group.Chunks, "tagged")
	if fn == nil {
		t.Fatalf("no chunk for tagged")
	}
	if len(fn.Decorators) != 1 || fn.Decorators[0] != "@staticmethod" {
		t.Errorf("decorators = %v", fn.Decorators)
	}
}

func TestMetadataChunkCaps(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Walker.MetadataLines = 3
	cfg.Walker.MetadataMaxBytes = 40
	c := NewChunker(&cfg.Walker, NewRegistry(), slog.Default())

	src := strings.Repeat("line with several words on it\n", 50)
	group, err := c.ChunkFile("big.txt", "text", []byte(src))
	if err != nil {
		t.Fatalf("ChunkFile: %v", err)
	}

	meta := group.Chunks[0]
	if len(meta.Content) > 40 {
		t.Errorf("metadata content %d bytes, cap 40", len(meta.Content))
	}
}

func TestGoMethodReceiver(t *testing.T) {
	src := `package demo

// Server serves.
type Server struct{}

func (s *Server) Start(addr string) error {
	if addr == "" {
		return nil
	}
	_ = addr
	return nil
}

func Standalone(x int) int {
	y := x + 1
	z := y * 2
	q := z - 3
	return q
}
`
	cfg := config.DefaultConfig()
	cfg.Walker.FileTokenThreshold = 1 // force the symbol path without a whole-file chunk
	c := NewChunker(&cfg.Walker, NewRegistry(), slog.Default())

	group, err := c.ChunkFile("server.go", "go", []byte(src))
	if err != nil {
		t.Fatalf("ChunkFile: %v", err)
	}

	start := findSymbol(group.Chunks, "Server.Start")
	if start == nil {
		t.Fatalf("no chunk for Server.Start; have %+v", group.Chunks)
	}
	if start.SymbolKind != models.SymbolKindMethod {
		t.Errorf("Start kind = %s", start.SymbolKind)
	}

	standalone := findSymbol(group.Chunks, "Standalone")
	if standalone == nil {
		t.Fatalf("no chunk for Standalone")
	}
	if standalone.SymbolKind != models.SymbolKindFunction {
		t.Errorf("Standalone kind = %s", standalone.SymbolKind)
	}
}

func TestBlobHashMatchesGit(t *testing.T) {
	// git hash-object of "hello\n"
	const want = "ce013625030ba8dba906f756967f9e9ca394464a"
	if got := BlobHash([]byte("hello\n")); got != want {
		t.Errorf("BlobHash = %s, want %s", got, want)
	}
}
