// Package notify delivers failure digests for a project.
package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/nadmax/failscope/internal/grid"
	"github.com/nadmax/failscope/internal/task"
)

type Digest struct {
	Project string
	Subject string
	Text    string
	HTML    string
	Count   int
}

func (d Digest) Empty() bool {
	return d.Count == 0
}

// BuildDigest renders rows grouped by variant then task. Links are prefixed with linkBase.
func BuildDigest(project string, rows []task.Record, linkBase string) Digest {
	d := Digest{Project: project, Count: len(rows)}
	if len(rows) == 0 {
		return d
	}

	noun := "failures"
	if len(rows) == 1 {
		noun = "failure"
	}
	d.Subject = fmt.Sprintf("[%s] %d new task %s", project, len(rows), noun)

	var text, body strings.Builder
	fmt.Fprintf(&text, "%s\n\n", d.Subject)
	fmt.Fprintf(&body, "<h2>%s</h2>\n", html.EscapeString(d.Subject))

	for _, vg := range grid.Group(rows) {
		fmt.Fprintf(&text, "%s (latest %s)\n", vg.BuildVariant, grid.FormatTime(vg.MaxCreateTime))
		fmt.Fprintf(&body, "<h3><a href=\"%s\">%s</a></h3>\n<ul>\n",
			html.EscapeString(linkBase+grid.BuildLink(vg.Tasks[0].Rows[0])),
			html.EscapeString(vg.BuildVariant))

		for _, tg := range vg.Tasks {
			for _, r := range tg.Rows {
				link := linkBase + grid.TaskLink(r)
				fmt.Fprintf(&text, "  - %s [%s] %s %s\n", r.DisplayName, task.StatusLabel(r), grid.FormatTime(r.CreateTime), link)
				fmt.Fprintf(&body, "<li class=\"%s\"><a href=\"%s\">%s</a> %s %s</li>\n",
					task.StatusClass(r),
					html.EscapeString(link),
					html.EscapeString(r.DisplayName),
					html.EscapeString(task.StatusLabel(r)),
					grid.FormatTime(r.CreateTime))
			}
		}
		text.WriteString("\n")
		body.WriteString("</ul>\n")
	}

	d.Text = text.String()
	d.HTML = body.String()
	return d
}
