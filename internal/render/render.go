package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"docqa/internal/domain"
)

const (
	TitleExcerpt    = "Excerpt"
	TitleSummary    = "Summary"
	TitleSupplement = "AI Supplement"
)

// Section is one block of a rendered answer: its first line is emphasized and
// the remaining lines follow it, one per line.
type Section struct {
	Title string
	First string
	Rest  []string
}

func newSection(title, text string) Section {
	first, rest := domain.SplitFirstLine(text)
	return Section{Title: title, First: first, Rest: rest}
}

// Sections lays out a result. Composed results get three titled sections;
// direct and failed results are a single untitled section.
func Sections(res *domain.QueryResult) []Section {
	if res == nil {
		return nil
	}
	switch res.Kind {
	case domain.ResultComposed:
		return []Section{
			newSection(TitleExcerpt, res.Excerpt),
			newSection(TitleSummary, res.Summary),
			newSection(TitleSupplement, res.Supplement),
		}
	default:
		return []Section{newSection("", res.Answer)}
	}
}

// Plain renders a result as text with blank lines between sections.
func Plain(res *domain.QueryResult) string {
	same := func(s string) string { return s }
	return join(Sections(res), same, same, same)
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	firstStyle = lipgloss.NewStyle().Bold(true)
	bodyStyle  = lipgloss.NewStyle().PaddingLeft(2)
)

// Styled renders a result for the terminal UI, wrapped to width when width > 0.
func Styled(res *domain.QueryResult, width int) string {
	body := bodyStyle
	if width > 4 {
		body = body.Width(width - 2)
	}
	return join(Sections(res),
		func(s string) string { return titleStyle.Render(s) },
		func(s string) string { return firstStyle.Render(s) },
		func(s string) string { return body.Render(s) },
	)
}

func join(sections []Section, title, first, line func(string) string) string {
	blocks := make([]string, 0, len(sections))
	for _, s := range sections {
		var b strings.Builder
		if s.Title != "" {
			b.WriteString(title(s.Title))
			b.WriteString("\n")
		}
		b.WriteString(line(first(s.First)))
		if len(s.Rest) > 0 {
			b.WriteString("\n")
			b.WriteString(line(strings.Join(s.Rest, "\n")))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}
