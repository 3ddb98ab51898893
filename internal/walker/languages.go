package walker

import (
	"path/filepath"
	"strings"
)

// Language describes one recognized source language.
type Language struct {
	Name       string
	Extensions []string
}

// LanguageDetector detects programming languages from file paths.
type LanguageDetector struct {
	languages map[string]*Language
	extMap    map[string]string // extension -> language name
}

// NewLanguageDetector creates a detector over the recognized languages.
func NewLanguageDetector() *LanguageDetector {
	languages := map[string]*Language{
		"python": {
			Name:       "python",
			Extensions: []string{".py", ".pyi"},
		},
		"go": {
			Name:       "go",
			Extensions: []string{".go"},
		},
		"java": {
			Name:       "java",
			Extensions: []string{".java"},
		},
		"javascript": {
			Name:       "javascript",
			Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		},
		"typescript": {
			Name:       "typescript",
			Extensions: []string{".ts", ".tsx"},
		},
	}

	extMap := make(map[string]string)
	for name, lang := range languages {
		for _, ext := range lang.Extensions {
			extMap[ext] = name
		}
	}

	return &LanguageDetector{
		languages: languages,
		extMap:    extMap,
	}
}

// Detect detects the language from a file path.
func (ld *LanguageDetector) Detect(filePath string) (*Language, bool) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == "" {
		return nil, false
	}

	langName, ok := ld.extMap[ext]
	if !ok {
		return nil, false
	}

	lang, ok := ld.languages[langName]
	return lang, ok
}

// IsSupported returns true if the file extension is recognized.
func (ld *LanguageDetector) IsSupported(filePath string) bool {
	_, ok := ld.Detect(filePath)
	return ok
}
