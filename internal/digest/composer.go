// Package digest renders attendance reports as emails and sends them to
// the configured recipients.
package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/perbu/presensi/internal/email"
	"github.com/perbu/presensi/internal/verify"
)

// Composer builds digest emails from attendance reports
type Composer struct {
	subjectPrefix string
}

// NewComposer creates a new digest composer
func NewComposer(subjectPrefix string) *Composer {
	return &Composer{subjectPrefix: subjectPrefix}
}

// Compose builds the digest for one recipient
func (c *Composer) Compose(report *verify.Report, recipient string) (*email.Email, error) {
	data, err := c.Data(report)
	if err != nil {
		return nil, err
	}
	html, err := RenderHTML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to render digest: %w", err)
	}
	return &email.Email{
		To:          recipient,
		Subject:     data.Subject(),
		HTMLContent: html,
		TextContent: RenderText(data),
	}, nil
}

// Data prepares the template data for a report
func (c *Composer) Data(report *verify.Report) (*Data, error) {
	counts := report.Counts()
	md := Markdown(report)
	body, err := MarkdownToHTML(md)
	if err != nil {
		return nil, fmt.Errorf("failed to convert digest markdown: %w", err)
	}

	checked := report.CheckedAt
	if checked.IsZero() {
		checked = time.Now()
	}
	return &Data{
		Date:          report.Date(),
		Absent:        counts[verify.StatusAbsent],
		Present:       counts[verify.StatusPresent],
		Unconfirmed:   len(report.Results) - counts[verify.StatusAbsent] - counts[verify.StatusPresent],
		Markdown:      md,
		BodyHTML:      body,
		CheckedAt:     checked.Format("2006-01-02 15:04"),
		SubjectPrefix: c.subjectPrefix,
	}, nil
}

// Markdown renders the report as a markdown document
func Markdown(report *verify.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# KKN Attendance %s\n\n", report.Date())

	absent := report.WithStatus(verify.StatusAbsent)
	b.WriteString("## Absent students\n\n")
	if len(absent) == 0 {
		b.WriteString("Everyone has checked in.\n")
	}
	for _, s := range absent {
		fmt.Fprintf(&b, "- %s (%s)\n", s.Name, s.StudentID)
	}

	b.WriteString("\n## Present students\n\n")
	present := report.Present()
	if len(present) == 0 {
		b.WriteString("Nobody has checked in yet.\n")
	}
	for _, s := range present {
		if s.Time != "" {
			fmt.Fprintf(&b, "- %s (%s) at **%s**\n", s.Name, s.StudentID, s.Time)
		} else {
			fmt.Fprintf(&b, "- %s (%s)\n", s.Name, s.StudentID)
		}
	}
	return b.String()
}
