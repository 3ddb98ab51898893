// Package search answers queries over the document hierarchy: level
// routing, query embedding, pre-filtered kNN and hierarchy navigation.
package search

import (
	"strings"

	"github.com/codesmriti/codesmriti/internal/models"
)

// Keyword groups for heuristic level routing. Matching is substring-based
// on the lowercased query; the first matching group wins.
var (
	symbolCues = []string{
		"function", "method", "class ", "find the", "definition of",
		"where is", "signature", "implementation of the function",
	}
	repoCues = []string{
		"overview", "architecture", "whole repo", "entire repo",
		"what does this repo", "what is this repo", "codebase",
	}
	conceptCues = []string{
		"concept", "design", "approach", "why does", "why is",
		"documentation", "explain the", "responsible for",
	}
	fileCues = []string{
		"how does", "how is", "how do", "works", "where does",
	}
)

// ClassifyIntent maps a free-form query to a search level when the caller
// did not supply one. Ambiguous queries route to file.
func ClassifyIntent(query string) models.SearchLevel {
	q := strings.ToLower(query)

	for _, cue := range symbolCues {
		if strings.Contains(q, cue) {
			return models.LevelSymbol
		}
	}
	for _, cue := range repoCues {
		if strings.Contains(q, cue) {
			return models.LevelRepo
		}
	}
	for _, cue := range conceptCues {
		if strings.Contains(q, cue) {
			return models.LevelDoc
		}
	}
	for _, cue := range fileCues {
		if strings.Contains(q, cue) {
			return models.LevelFile
		}
	}
	return models.LevelFile
}
