// Package reader turns an item's full content into plain summary text.
package reader

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
)

// DefaultSummaryChars bounds derived summaries so they stay comparable to feed summaries.
const DefaultSummaryChars = 400

var placeholderURL = &url.URL{Scheme: "https", Host: "storyline.invalid"}

// ExtractText returns readable text from content. HTML goes through readability;
// anything else is only whitespace-normalized.
func ExtractText(content, pageURL string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", nil
	}
	if !looksLikeHTML(trimmed) {
		return CleanText(trimmed), nil
	}

	base := placeholderURL
	if parsed, err := url.Parse(strings.TrimSpace(pageURL)); err == nil && parsed.IsAbs() {
		base = parsed
	}

	article, err := readability.FromReader(strings.NewReader(trimmed), base)
	if err != nil {
		return "", fmt.Errorf("readability parse: %w", err)
	}

	var rendered bytes.Buffer
	if err := article.RenderText(&rendered); err != nil {
		return "", fmt.Errorf("render readability text: %w", err)
	}

	text := CleanText(rendered.String())
	if text == "" {
		text = CleanText(article.Excerpt())
	}
	return text, nil
}

// Summarize derives a bounded summary from content. Extraction failures yield "".
func Summarize(content, pageURL string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultSummaryChars
	}
	text, err := ExtractText(content, pageURL)
	if err != nil {
		return ""
	}
	if first, _, ok := strings.Cut(text, "\n\n"); ok && len([]rune(first)) >= maxChars/4 {
		text = first
	}
	summary, _ := TruncateText(strings.Join(strings.Fields(text), " "), maxChars)
	return summary
}

func looksLikeHTML(value string) bool {
	open := strings.IndexByte(value, '<')
	return open >= 0 && strings.IndexByte(value[open:], '>') > 0
}

// CleanText normalizes line endings and collapses extra in-line whitespace.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(strings.TrimSpace(line)), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}

	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}

// TruncateText clips text to maxChars runes and appends a single ellipsis rune when truncated.
func TruncateText(raw string, maxChars int) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if maxChars <= 0 {
		return trimmed, false
	}

	runes := []rune(trimmed)
	if len(runes) <= maxChars {
		return trimmed, false
	}
	if maxChars == 1 {
		return "…", true
	}

	clipped := strings.TrimSpace(string(runes[:maxChars-1]))
	if clipped == "" {
		return "…", true
	}
	return clipped + "…", true
}
