package session

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"tradeshare/internal/model"
	"tradeshare/internal/query"
)

const chartWidth = 40

// Renderer formats query results for a terminal. Colour support is detected
// from the writer, so piped output stays plain text.
type Renderer struct {
	title  lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style
	border lipgloss.Style
	bar    lipgloss.Style
	other  lipgloss.Style
	muted  lipgloss.Style
}

func NewRenderer(w io.Writer) *Renderer {
	r := lipgloss.NewRenderer(w)
	return &Renderer{
		title:  r.NewStyle().Bold(true),
		header: r.NewStyle().Bold(true).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
		border: r.NewStyle().Foreground(lipgloss.Color("240")),
		bar:    r.NewStyle().Foreground(lipgloss.Color("39")),
		other:  r.NewStyle().Foreground(lipgloss.Color("244")),
		muted:  r.NewStyle().Faint(true),
	}
}

func formatShare(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

// Table renders a partner ranking with Country and Percentage columns.
func (r *Renderer) Table(title string, shares []query.Share) string {
	rows := make([][]string, 0, len(shares))
	for _, share := range shares {
		rows = append(rows, []string{share.Name, formatShare(share.Weight)})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.border).
		Headers("Country", "Percentage").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := r.cell
			if row == table.HeaderRow {
				style = r.header
			}
			if col == 1 {
				style = style.Align(lipgloss.Right)
			}
			return style
		})

	if len(rows) == 0 {
		return r.title.Render(title) + "\n" + r.muted.Render("(no partners recorded)")
	}
	return r.title.Render(title) + "\n" + t.Render()
}

// Chart renders a distribution as labelled horizontal bars, one per slice.
// Negative remainders are listed with a zero-length bar.
func (r *Renderer) Chart(title string, slices []query.Share) string {
	labelWidth := 0
	for _, slice := range slices {
		if w := lipgloss.Width(slice.Name); w > labelWidth {
			labelWidth = w
		}
	}

	var b strings.Builder
	b.WriteString(r.title.Render(title))
	for _, slice := range slices {
		n := int(slice.Weight / 100 * chartWidth)
		if n < 0 {
			n = 0
		}
		if n > chartWidth {
			n = chartWidth
		}
		style := r.bar
		if slice.Partner == query.OtherPartner {
			style = r.other
		}
		fmt.Fprintf(&b, "\n%-*s %s %5.1f%%",
			labelWidth, slice.Name,
			style.Render(strings.Repeat("█", n)+strings.Repeat("·", chartWidth-n)),
			slice.Weight,
		)
	}
	return b.String()
}

func (r *Renderer) Lookup(match query.Match) string {
	if match.ByName {
		return fmt.Sprintf("'%s' has the country code %s", match.Name, match.Code)
	}
	return fmt.Sprintf("%s is the country code of '%s'", match.Code, match.Name)
}

func (r *Renderer) Partners(reporter model.Reporter, flow model.Flow, partners []model.Reporter) string {
	names := make([]string, len(partners))
	for i, partner := range partners {
		names[i] = partner.Name
	}
	list := strings.Join(names, ", ")
	if list == "" {
		list = r.muted.Render("none recorded")
	}
	return fmt.Sprintf("The %s partners of %s are: %s", flow, reporter.Name, list)
}

func (r *Renderer) Bilateral(result query.Bilateral) string {
	a, b := result.A.Name, result.B.Name
	return fmt.Sprintf("%s has %s percent import from %s and %s percent export to %s, while %s has %s percent import from %s and %s percent export to %s",
		a, formatShare(result.AImportsFromB), b, formatShare(result.AExportsToB), b,
		b, formatShare(result.BImportsFromA), a, formatShare(result.BExportsToA), a,
	)
}
