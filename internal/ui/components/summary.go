package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/coursewalk/internal/ui/theme"
)

// SubjectRow is one line of a Summary.
type SubjectRow struct {
	Subject   string
	Total     int
	Processed int
}

// Summary renders per-subject completion for one semester.
type Summary struct {
	Semester int
	Rows     []SubjectRow
	Width    int
}

// View renders the summary as a titled block of progress bars.
func (s Summary) View() string {
	var b strings.Builder
	b.WriteString(theme.Title.Render(fmt.Sprintf("Semester %d", s.Semester)))
	b.WriteString("\n\n")

	if len(s.Rows) == 0 {
		b.WriteString(theme.Hint.Render("No courses recorded yet."))
		b.WriteString("\n")
		return b.String()
	}

	nameWidth := 0
	for _, r := range s.Rows {
		nameWidth = max(nameWidth, lipgloss.Width(r.Subject))
	}

	var total, processed int
	for _, r := range s.Rows {
		total += r.Total
		processed += r.Processed

		pct := 0.0
		if r.Total > 0 {
			pct = float64(r.Processed) / float64(r.Total)
		}
		label := r.Subject + strings.Repeat(" ", nameWidth-lipgloss.Width(r.Subject))
		bar := NewProgressBar(label, pct, true, s.Width)
		b.WriteString(bar.View())
		b.WriteString("  ")
		b.WriteString(countStyle(r.Processed, r.Total).Render(fmt.Sprintf("%d/%d", r.Processed, r.Total)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(countStyle(processed, total).Render(
		fmt.Sprintf("%d of %d courses complete across %d subjects", processed, total, len(s.Rows)),
	))
	b.WriteString("\n")
	return b.String()
}

func countStyle(processed, total int) lipgloss.Style {
	if total > 0 && processed >= total {
		return theme.Complete
	}
	return theme.Remaining
}
