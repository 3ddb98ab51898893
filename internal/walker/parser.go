package walker

import (
	"fmt"
	"strings"

	"github.com/codesmriti/codesmriti/internal/errs"
	"github.com/codesmriti/codesmriti/internal/models"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Parser extracts symbol chunks from one file. Implementations are
// registered per language; files without a registered parser degrade to
// whole-file chunks.
type Parser interface {
	Chunk(source []byte, path string) ([]models.Chunk, error)
}

// Registry maps language names to parsers. Languages are added by
// registration, never by switch statements in the pipeline.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds the registry with the built-in tree-sitter parsers.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}

	r.Register("python", &treeSitterParser{
		language: "python",
		sitterLang: python.GetLanguage(),
		spec: nodeSpec{
			functions:     map[string]bool{"function_definition": true},
			classes:       map[string]bool{"class_definition": true},
			decorated:     "decorated_definition",
			decorator:     "decorator",
			hasDocstrings: true,
		},
	})
	r.Register("go", &treeSitterParser{
		language: "go",
		sitterLang: golang.GetLanguage(),
		spec: nodeSpec{
			functions: map[string]bool{"function_declaration": true, "method_declaration": true},
			classes:   map[string]bool{},
		},
	})
	r.Register("java", &treeSitterParser{
		language: "java",
		sitterLang: java.GetLanguage(),
		spec: nodeSpec{
			functions: map[string]bool{"method_declaration": true, "constructor_declaration": true},
			classes: map[string]bool{
				"class_declaration":     true,
				"interface_declaration": true,
				"enum_declaration":      true,
			},
		},
	})
	r.Register("javascript", &treeSitterParser{
		language: "javascript",
		sitterLang: javascript.GetLanguage(),
		spec: nodeSpec{
			functions: map[string]bool{"function_declaration": true, "method_definition": true},
			classes:   map[string]bool{"class_declaration": true},
			unwrap:    map[string]bool{"export_statement": true},
		},
	})
	r.Register("typescript", &treeSitterParser{
		language: "typescript",
		sitterLang: typescript.GetLanguage(),
		spec: nodeSpec{
			functions: map[string]bool{"function_declaration": true, "method_definition": true},
			classes: map[string]bool{
				"class_declaration":     true,
				"interface_declaration": true,
			},
			unwrap: map[string]bool{"export_statement": true},
		},
	})

	return r
}

// Register adds or replaces the parser for a language.
func (r *Registry) Register(language string, p Parser) {
	r.parsers[language] = p
}

// Get returns the parser for a language.
func (r *Registry) Get(language string) (Parser, bool) {
	p, ok := r.parsers[language]
	return p, ok
}

// nodeSpec names the syntax-tree node types of interest for one grammar.
// A function node found inside a class body becomes a method.
type nodeSpec struct {
	functions     map[string]bool
	classes       map[string]bool
	unwrap        map[string]bool // transparent wrappers, e.g. export_statement
	decorated     string          // wrapper node carrying decorators
	decorator     string
	hasDocstrings bool // string-literal docstrings as the first body statement
}

// treeSitterParser extracts symbols using a tree-sitter grammar. A fresh
// sitter.Parser is created per call; the underlying parser is not safe for
// concurrent use and the walker runs many files in parallel.
type treeSitterParser struct {
	language   string
	sitterLang *sitter.Language
	spec       nodeSpec
}

// Chunk parses source and emits one chunk per top-level function, one
// class-header chunk per class and one chunk per method. Nested classes
// recurse identically.
func (p *treeSitterParser) Chunk(source []byte, path string) ([]models.Chunk, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(p.sitterLang)

	tree := parser.Parse(nil, source)
	if tree == nil {
		return nil, fmt.Errorf("%w: no syntax tree for %s", errs.ErrParseFailure, path)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() && root.NamedChildCount() == 0 {
		return nil, fmt.Errorf("%w: unusable syntax tree for %s", errs.ErrParseFailure, path)
	}

	var chunks []models.Chunk
	p.walkScope(root, source, path, "", &chunks)
	return chunks, nil
}

// walkScope visits the named children of a scope: the module root or a
// class body.
func (p *treeSitterParser) walkScope(scope *sitter.Node, source []byte, path, parentClass string, out *[]models.Chunk) {
	count := int(scope.NamedChildCount())
	for i := 0; i < count; i++ {
		child := scope.NamedChild(i)
		if child == nil {
			continue
		}
		p.visit(child, source, path, parentClass, nil, out)
	}
}

func (p *treeSitterParser) visit(node *sitter.Node, source []byte, path, parentClass string, decorators []string, out *[]models.Chunk) {
	nodeType := node.Type()

	switch {
	case p.spec.unwrap[nodeType]:
		count := int(node.NamedChildCount())
		for i := 0; i < count; i++ {
			if child := node.NamedChild(i); child != nil {
				p.visit(child, source, path, parentClass, decorators, out)
			}
		}

	case nodeType == p.spec.decorated && p.spec.decorated != "":
		var decs []string
		var inner *sitter.Node
		count := int(node.NamedChildCount())
		for i := 0; i < count; i++ {
			child := node.NamedChild(i)
			if child == nil {
				continue
			}
			if child.Type() == p.spec.decorator {
				decs = append(decs, strings.TrimSpace(child.Content(source)))
			} else {
				inner = child
			}
		}
		if inner != nil {
			p.visit(inner, source, path, parentClass, decs, out)
		}

	case p.spec.classes[nodeType]:
		name := p.nodeName(node, source)
		if name == "" {
			return
		}
		qualified := models.CanonicalSymbolName(name, parentClass)
		*out = append(*out, p.classHeaderChunk(node, source, path, name, parentClass, decorators))
		if body := node.ChildByFieldName("body"); body != nil {
			p.walkScope(body, source, path, qualified, out)
		}

	case p.spec.functions[nodeType]:
		chunk := p.symbolChunk(node, source, path, parentClass, decorators)
		if chunk != nil {
			*out = append(*out, *chunk)
		}
	}
}

// classHeaderChunk covers the class signature and docstring, not the body;
// methods get their own chunks.
func (p *treeSitterParser) classHeaderChunk(node *sitter.Node, source []byte, path, name, parentClass string, decorators []string) models.Chunk {
	header := node.Content(source)
	if body := node.ChildByFieldName("body"); body != nil {
		start := int(node.StartByte())
		end := int(body.StartByte())
		if start < end && end <= len(source) {
			header = strings.TrimSpace(string(source[start:end]))
		}
	}

	docstring := ""
	if p.spec.hasDocstrings {
		docstring = p.bodyDocstring(node, source)
	}
	if docstring != "" {
		header = header + "\n" + docstring
	}

	// The chunk covers the header only, and its line span is judged against
	// the minimum-lines rule on that basis; methods carry the body.
	startLine := int(node.StartPoint().Row) + 1

	return models.Chunk{
		Path:         path,
		Language:     p.language,
		StartLine:    startLine,
		EndLine:      startLine + strings.Count(header, "\n"),
		Kind:         models.ChunkKindSymbol,
		SymbolName:   models.CanonicalSymbolName(name, parentClass),
		SymbolKind:   models.SymbolKindClass,
		ParentSymbol: parentClass,
		Docstring:    docstring,
		Decorators:   decorators,
		Content:      header,
	}
}

func (p *treeSitterParser) symbolChunk(node *sitter.Node, source []byte, path, parentClass string, decorators []string) *models.Chunk {
	name := p.nodeName(node, source)
	if name == "" {
		return nil
	}

	kind := models.SymbolKindFunction
	if parentClass != "" {
		kind = models.SymbolKindMethod
	}

	// Go methods carry their receiver type as the parent class.
	if parentClass == "" && node.Type() == "method_declaration" && p.language == "go" {
		if recv := receiverType(node, source); recv != "" {
			kind = models.SymbolKindMethod
			parentClass = recv
		}
	}

	docstring := ""
	if p.spec.hasDocstrings {
		docstring = p.bodyDocstring(node, source)
	}

	return &models.Chunk{
		Path:         path,
		Language:     p.language,
		StartLine:    int(node.StartPoint().Row) + 1,
		EndLine:      int(node.EndPoint().Row) + 1,
		Kind:         models.ChunkKindSymbol,
		SymbolName:   models.CanonicalSymbolName(name, parentClass),
		SymbolKind:   kind,
		ParentSymbol: parentClass,
		Docstring:    docstring,
		Decorators:   decorators,
		Parameters:   parameterList(node, source),
		Content:      node.Content(source),
	}
}

// nodeName reads the "name" field of a declaration node.
func (p *treeSitterParser) nodeName(node *sitter.Node, source []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return name.Content(source)
	}
	return ""
}

// bodyDocstring returns the string literal that opens a definition body.
func (p *treeSitterParser) bodyDocstring(node *sitter.Node, source []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}

	first := body.NamedChild(0)
	if first == nil || first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}

	str := first.NamedChild(0)
	if str == nil || str.Type() != "string" {
		return ""
	}

	return StripStringQuotes(str.Content(source))
}

// parameterList returns the declared parameter texts of a callable node.
func parameterList(node *sitter.Node, source []byte) []string {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}

	var out []string
	count := int(params.NamedChildCount())
	for i := 0; i < count; i++ {
		if child := params.NamedChild(i); child != nil {
			out = append(out, strings.TrimSpace(child.Content(source)))
		}
	}
	return out
}

// receiverType finds the receiver's type identifier on a Go method.
func receiverType(node *sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}

	var found string
	var scan func(n *sitter.Node)
	scan = func(n *sitter.Node) {
		if n == nil || found != "" {
			return
		}
		if n.Type() == "type_identifier" {
			found = n.Content(source)
			return
		}
		count := int(n.NamedChildCount())
		for i := 0; i < count; i++ {
			scan(n.NamedChild(i))
		}
	}
	scan(recv)
	return found
}

// StripStringQuotes removes the quote delimiters and leading/trailing
// whitespace of a string literal, including triple-quoted forms.
func StripStringQuotes(s string) string {
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return strings.TrimSpace(s)
}
