package usecase

import (
	"strings"

	"ragchat/internal/domain"
)

const contextHeader = "Answer using the following information:\n"

// BuildContext renders search results as a context block for a chat prompt.
// It returns "" when there are no results.
func BuildContext(results []domain.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	contents := make([]string, len(results))
	for i, r := range results {
		contents[i] = r.Content
	}
	return contextHeader + strings.Join(contents, "\n") + "\n"
}

// AugmentPrompt prefixes message with the context built from results.
func AugmentPrompt(message string, results []domain.SearchResult) string {
	ctx := BuildContext(results)
	if ctx == "" {
		return message
	}
	return ctx + "Question: " + message
}
