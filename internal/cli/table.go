package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// styles are bound to one writer so colour is only emitted on terminals.
type styles struct {
	title  lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style
	pass   lipgloss.Style
	fail   lipgloss.Style
	notice lipgloss.Style
	warn   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:  r.NewStyle().Bold(true),
		header: r.NewStyle().Bold(true).Underline(true),
		cell:   r.NewStyle(),
		pass:   r.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true),
		fail:   r.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true),
		notice: r.NewStyle().Foreground(lipgloss.Color("#2196F3")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("#FFC107")),
	}
}

// status colours PASS and FAIL.
func (s styles) status(v string) string {
	switch v {
	case "PASS":
		return s.pass.Render(v)
	case "FAIL":
		return s.fail.Render(v)
	default:
		return v
	}
}

// table is a titled grid of text cells. A cell may span several lines.
type table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// render writes t with columns padded to their widest line.
func (t table) render(w io.Writer, s styles) error {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString(s.title.Render(t.Title))
		b.WriteString("\n")
	}
	b.WriteString(joinRow(t.Headers, widths, s.header))
	b.WriteString("\n")
	for _, row := range t.Rows {
		b.WriteString(joinRow(row, widths, s.cell))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func joinRow(cells []string, widths []int, style lipgloss.Style) string {
	cols := make([]string, len(widths))
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		rendered := style.Render(cell)
		if i < len(widths)-1 {
			rendered = lipgloss.NewStyle().Width(widths[i] + 2).Render(rendered)
		}
		cols[i] = rendered
	}
	lines := strings.Split(lipgloss.JoinHorizontal(lipgloss.Top, cols...), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}
