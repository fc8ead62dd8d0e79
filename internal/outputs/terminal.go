package outputs

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	headingColor = color.New(color.FgWhite, color.Bold).SprintFunc()
	sectionColor = color.New(color.FgCyan, color.Bold).SprintFunc()
	refColor     = color.New(color.FgYellow).SprintFunc()
	labelColor   = color.New(color.FgMagenta).SprintFunc()
	mutedColor   = color.New(color.Faint).SprintFunc()
)

// RenderTerminal renders a report for interactive display.
func RenderTerminal(report Report) string {
	width := terminalWidth()
	var sb strings.Builder

	title := "What's new"
	if report.Range.Summary != "" {
		title = fmt.Sprintf("What's new (%s)", report.Range.Summary)
	}
	sb.WriteString(headingColor(title))
	sb.WriteString("\n")
	sb.WriteString(mutedColor(strings.Repeat("─", min(width, len(title)+8))))
	sb.WriteString("\n")

	if len(report.Sections) == 0 {
		sb.WriteString("No user-facing changes in this range.\n")
	}
	for _, section := range report.Sections {
		sb.WriteString("\n")
		sb.WriteString(sectionColor(section.Title))
		sb.WriteString("\n")
		for _, item := range section.Items {
			sb.WriteString("  • ")
			sb.WriteString(item.Summary)
			if len(item.Refs) > 0 {
				sb.WriteString(" ")
				sb.WriteString(refColor("(" + strings.Join(item.Refs, ", ") + ")"))
			}
			if len(item.Labels) > 0 {
				sb.WriteString(" ")
				sb.WriteString(labelColor("[" + strings.Join(item.Labels, ", ") + "]"))
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(mutedColor(fmt.Sprintf(
		"%d commits · %d PRs · model %s · %d internal change(s) hidden",
		report.Meta.CommitCount, report.Meta.PRCount, report.Meta.Model, report.Meta.DroppedInternal,
	)))
	sb.WriteString("\n")
	return sb.String()
}

func terminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}
