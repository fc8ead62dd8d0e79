package outputs

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a report as a Markdown changelog document.
func RenderMarkdown(report Report) string {
	var sb strings.Builder

	heading := "What's new"
	if report.Meta.Tag != "" {
		heading = fmt.Sprintf("What's new in %s", report.Meta.Tag)
	} else if report.Range.Summary != "" {
		heading = fmt.Sprintf("What's new (%s)", report.Range.Summary)
	}
	sb.WriteString("# ")
	sb.WriteString(heading)
	sb.WriteString("\n")

	if len(report.Sections) == 0 {
		sb.WriteString("\nNo user-facing changes in this range.\n")
	}
	for _, section := range report.Sections {
		sb.WriteString("\n## ")
		sb.WriteString(section.Title)
		sb.WriteString("\n\n")
		for _, item := range section.Items {
			sb.WriteString("- ")
			sb.WriteString(item.Summary)
			if len(item.Refs) > 0 {
				sb.WriteString(" (")
				sb.WriteString(strings.Join(item.Refs, ", "))
				sb.WriteString(")")
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString(fmt.Sprintf(
		"\n_Generated %s from %d commits and %d pull requests._\n",
		report.Meta.GeneratedAt, report.Meta.CommitCount, report.Meta.PRCount,
	))
	return sb.String()
}
