package fetch

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// IsPDF checks the content type first and falls back to the URL extension.
func IsPDF(rawURL, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	path := strings.ToLower(rawURL)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return strings.HasSuffix(path, ".pdf")
}

// ExtractPDFText returns a title guess and the plain text of every readable page.
func ExtractPDFText(data []byte) (string, string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		textBuilder.WriteString(pageText)
		textBuilder.WriteString("\n\n")
	}

	text := cleanPDFText(textBuilder.String())
	return extractPDFTitle(text), text, nil
}

// cleanPDFText drops blank and very short lines, which are mostly page furniture.
func cleanPDFText(rawText string) string {
	var cleanLines []string
	for _, line := range strings.Split(rawText, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) > 2 {
			cleanLines = append(cleanLines, trimmed)
		}
	}
	return strings.TrimSpace(strings.Join(cleanLines, "\n"))
}

// extractPDFTitle picks the first substantial line that does not look like a URL or a shouted header.
func extractPDFTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) > 10 && len(trimmed) < 200 && !strings.Contains(trimmed, "http") &&
			(len(trimmed) < 50 || !isAllUpperCase(trimmed)) {
			return trimmed
		}
	}
	words := strings.Fields(content)
	if len(words) > 3 {
		return strings.Join(words[:3], " ") + "..."
	}
	return "PDF Document"
}

func isAllUpperCase(s string) bool {
	return strings.ToUpper(s) == s && strings.ToLower(s) != s
}
