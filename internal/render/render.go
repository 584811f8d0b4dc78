// Package render exports finished games as markdown host sheets, HTML pages or JSON.
package render

import (
	"encoding/json"
	"fmt"
	"html/template"
	"jeop3/internal/core"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Format is an export format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// ParseFormat maps user input onto a Format. Empty input means markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q (expected md, html or json)", s)
}

// ContentType is the HTTP content type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatJSON:
		return "application/json"
	}
	return "text/markdown; charset=utf-8"
}

// Markdown renders the game as a host sheet: the board overview followed by every clue with its
// response, grouped by category.
func Markdown(g core.Game) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", g.Title)
	if g.Subtitle != "" {
		fmt.Fprintf(&b, "*%s*\n\n", g.Subtitle)
	}

	meta := []string{}
	if g.Metadata.Theme != "" {
		meta = append(meta, "**Theme:** "+g.Metadata.Theme)
	}
	if g.Metadata.Difficulty != "" {
		meta = append(meta, "**Difficulty:** "+string(g.Metadata.Difficulty))
	}
	if !g.CreatedAt.IsZero() {
		meta = append(meta, "**Created:** "+g.CreatedAt.UTC().Format("2006-01-02"))
	}
	if len(meta) > 0 {
		b.WriteString(strings.Join(meta, " | "))
		b.WriteString("\n\n")
	}

	if len(g.SuggestedTeamNames) > 0 {
		b.WriteString("## Teams\n\n")
		for _, name := range g.SuggestedTeamNames {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		b.WriteString("\n")
	}

	if len(g.Categories) == 0 {
		b.WriteString("No categories on this board.\n")
		return b.String()
	}

	b.WriteString("## Board\n\n")
	writeBoardTable(&b, g)

	for i, cat := range g.Categories {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, cat.Title)
		if cat.ContentTopic != "" && cat.ContentTopic != cat.Title {
			fmt.Fprintf(&b, "*%s*\n\n", cat.ContentTopic)
		}
		for _, clue := range cat.Clues {
			fmt.Fprintf(&b, "- **%d**: %s\n  - *Response:* %s\n", clue.Value, clue.Clue, clue.Response)
		}
		b.WriteString("\n")
	}

	if len(g.Metadata.Sources) > 0 {
		b.WriteString("---\n\n## Sources\n\n")
		for i, src := range g.Metadata.Sources {
			if src.URL != "" {
				fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, src.Label, src.URL)
				continue
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, src.Label)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// writeBoardTable writes the category by row value grid.
func writeBoardTable(b *strings.Builder, g core.Game) {
	rows := g.Rows
	for _, cat := range g.Categories {
		if len(cat.Clues) > rows {
			rows = len(cat.Clues)
		}
	}

	headers := make([]string, len(g.Categories))
	for i, cat := range g.Categories {
		headers[i] = escapeCell(cat.Title)
	}
	fmt.Fprintf(b, "| %s |\n", strings.Join(headers, " | "))
	fmt.Fprintf(b, "|%s\n", strings.Repeat(" --- |", len(g.Categories)))

	for r := 0; r < rows; r++ {
		cells := make([]string, len(g.Categories))
		for i, cat := range g.Categories {
			if r < len(cat.Clues) {
				cells[i] = fmt.Sprintf("%d", cat.Clues[r].Value)
			}
		}
		fmt.Fprintf(b, "| %s |\n", strings.Join(cells, " | "))
	}
	b.WriteString("\n")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// MarkdownToHTML converts markdown to HTML with tables and external links opening in a new tab.
func MarkdownToHTML(text string) template.HTML {
	if text == "" {
		return template.HTML("")
	}
	mdParser := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank,
	})
	return template.HTML(markdown.ToHTML([]byte(text), mdParser, renderer))
}

var pageTemplate = template.Must(template.New("game").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: .4rem; text-align: center; }
th { background: #060ce9; color: #fff; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTML renders the host sheet as a standalone HTML page.
func HTML(g core.Game) (string, error) {
	var b strings.Builder
	err := pageTemplate.Execute(&b, struct {
		Title string
		Body  template.HTML
	}{Title: g.Title, Body: MarkdownToHTML(Markdown(g))})
	if err != nil {
		return "", fmt.Errorf("failed to render game page: %w", err)
	}
	return b.String(), nil
}

// Render exports the game in the given format.
func Render(g core.Game, f Format) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return []byte(Markdown(g)), nil
	case FormatHTML:
		page, err := HTML(g)
		if err != nil {
			return nil, err
		}
		return []byte(page), nil
	case FormatJSON:
		out, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode game: %w", err)
		}
		return append(out, '\n'), nil
	}
	return nil, fmt.Errorf("unknown export format %q", f)
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Filename builds a file name from the game title, e.g. "space-night.md".
func Filename(g core.Game, f Format) string {
	slug := strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(g.Title), "-"), "-")
	if slug == "" {
		slug = "game"
	}
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "-")
	}
	return slug + "." + string(f)
}

// WriteGameToFile renders the game and writes it under outputDir, returning the file path.
func WriteGameToFile(g core.Game, f Format, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = "games"
	}
	content, err := Render(g, f)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	filePath := filepath.Join(outputDir, Filename(g, f))
	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write game file %s: %w", filePath, err)
	}
	return filePath, nil
}
