package email

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
)

var ErrTemplateNotFound = errors.New("template not found")

// TemplateMedicationReminder is the built-in reminder e-mail.
const TemplateMedicationReminder = "medication-reminder"

// Template defines a reusable message.
type Template struct {
	ID      string
	Name    string
	Subject string
	Body    string
}

// TemplateEngine renders {{key}} placeholders. Values are HTML-escaped in the
// body; the subject is plain text.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.RegisterTemplate(Template{
		ID:      TemplateMedicationReminder,
		Name:    "Medication Reminder",
		Subject: "Medication Reminder: {{medication}}",
		Body: `<html><body style="font-family: sans-serif;">` +
			`<h2>Medication Reminder</h2>` +
			`<p>Dear {{patient_name}},</p>` +
			`<p>{{message}}</p>` +
			`<p><strong>Medication:</strong> {{medication}}<br><strong>Dosage:</strong> {{dosage}}<br><strong>Time:</strong> {{time}}</p>` +
			`<p>{{instructions}}</p>` +
			`</body></html>`,
	})
	return e
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and substitutes data. Placeholders with
// no value in data render empty.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrTemplateNotFound, templateID)
	}
	return substitute(t.Subject, data, false), substitute(t.Body, data, true), nil
}

func substitute(s string, data map[string]string, escape bool) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:start])
		v := data[strings.TrimSpace(s[start+2:start+end])]
		if escape {
			v = html.EscapeString(v)
		}
		b.WriteString(v)
		s = s[start+end+2:]
	}
}
