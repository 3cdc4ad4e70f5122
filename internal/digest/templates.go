package digest

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
)

// Data holds everything needed to render an attendance digest
type Data struct {
	Date          string
	Absent        int
	Present       int
	Unconfirmed   int
	Markdown      string
	BodyHTML      template.HTML
	CheckedAt     string
	SubjectPrefix string
}

// Subject generates the email subject line
func (d *Data) Subject() string {
	s := "KKN attendance " + d.Date
	if d.SubjectPrefix != "" {
		s = d.SubjectPrefix + " " + s
	}
	return s
}

var htmlTemplate = template.Must(template.New("html").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>KKN Attendance</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 700px;
            margin: 0 auto;
            padding: 20px;
        }
        h1 {
            color: #2c3e50;
            border-bottom: 2px solid #3498db;
            padding-bottom: 10px;
        }
        h2 {
            color: #2980b9;
            margin-top: 30px;
        }
        .counts {
            background: #f8f9fa;
            border-left: 4px solid #3498db;
            padding: 15px 20px;
            margin: 20px 0;
        }
        .absent { color: #c0392b; }
        .present { color: #27ae60; }
        .footer {
            margin-top: 40px;
            padding-top: 20px;
            border-top: 1px solid #ddd;
            color: #666;
            font-size: 0.85em;
        }
    </style>
</head>
<body>
    <div class="counts">
        <span class="absent">Absent: {{.Absent}}</span> &middot;
        <span class="present">Present: {{.Present}}</span>
        {{if .Unconfirmed}}&middot; Not confirmed: {{.Unconfirmed}}{{end}}
    </div>
    {{.BodyHTML}}
    <div class="footer">
        <p>Checked at {{.CheckedAt}} by Presensi</p>
    </div>
</body>
</html>`))

// RenderHTML renders the digest as HTML
func RenderHTML(data *Data) (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderText renders the digest as plain text
func RenderText(data *Data) string {
	return StripMarkdown(data.Markdown) + "\n\nChecked at " + data.CheckedAt + " by Presensi\n"
}

// MarkdownToHTML converts markdown text to HTML
func MarkdownToHTML(markdown string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// StripMarkdown removes the markdown syntax used in digests
func StripMarkdown(markdown string) string {
	lines := strings.Split(markdown, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			line = strings.TrimLeft(line, "# ")
		}
		lines[i] = line
	}

	result := strings.Join(lines, "\n")
	result = strings.ReplaceAll(result, "**", "")
	result = strings.ReplaceAll(result, "`", "")
	return result
}
