package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var defaultSubjects = map[string]string{
	TemplateVerifyAccount:   "Please verify your email before using Taskboard",
	TemplateBoardInvitation: "You're invited to a board",
}

// Render executes the named template. data["subject"] overrides the default
// subject.
func Render(templateName string, data map[string]any) (string, string, error) {
	tmpl := templates.Lookup(templateName + ".html")
	if tmpl == nil {
		return "", "", fmt.Errorf("email: unknown template %q", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}

	subject := defaultSubjects[templateName]
	if s, ok := data["subject"].(string); ok && s != "" {
		subject = s
	} else if templateName == TemplateBoardInvitation {
		if title, ok := data["board_title"].(string); ok && title != "" {
			subject = fmt.Sprintf("You're invited to join %s", title)
		}
	}
	return subject, body.String(), nil
}
