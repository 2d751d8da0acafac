package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	vo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// TemplateData is what every template sees. Ctx carries the per-kind values
// captured when the notification was queued.
type TemplateData struct {
	Name    string
	Email   string
	BaseURL string
	Ctx     map[string]any
}

type kindTemplates struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// Renderer turns a notification kind and its context into a Message.
type Renderer struct {
	templates map[vo.Kind]kindTemplates
}

func templateFuncs() map[string]any {
	return map[string]any{
		// value returns ctx[key] or fallback when the key is missing or empty.
		"value": func(ctx map[string]any, key, fallback string) string {
			v, ok := ctx[key]
			if !ok || v == nil {
				return fallback
			}
			s := fmt.Sprint(v)
			if s == "" {
				return fallback
			}
			return s
		},
		"has": func(ctx map[string]any, key string) bool {
			v, ok := ctx[key]
			return ok && v != nil && fmt.Sprint(v) != ""
		},
	}
}

// NewRenderer parses the embedded templates of every kind.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[vo.Kind]kindTemplates)}

	for _, kind := range vo.AllKinds() {
		htmlName := kind.String() + ".html.tmpl"
		textName := kind.String() + ".txt.tmpl"

		html, err := htmltemplate.New(htmlName).Funcs(templateFuncs()).ParseFS(templateFS, "templates/"+htmlName)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", htmlName, err)
		}
		text, err := texttemplate.New(textName).Funcs(templateFuncs()).ParseFS(templateFS, "templates/"+textName)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", textName, err)
		}
		if text.Lookup("subject") == nil {
			return nil, fmt.Errorf("template %s has no subject block", textName)
		}

		r.templates[kind] = kindTemplates{html: html, text: text}
	}

	return r, nil
}

// Render produces the subject and both bodies for kind.
func (r *Renderer) Render(kind vo.Kind, data TemplateData) (Message, error) {
	t, ok := r.templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("no template for kind %s", kind)
	}
	if data.Ctx == nil {
		data.Ctx = map[string]any{}
	}

	var subject, text, html bytes.Buffer
	if err := t.text.ExecuteTemplate(&subject, "subject", data); err != nil {
		return Message{}, fmt.Errorf("failed to render %s subject: %w", kind, err)
	}
	if err := t.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("failed to render %s text body: %w", kind, err)
	}
	if err := t.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("failed to render %s html body: %w", kind, err)
	}

	return Message{
		To:       data.Email,
		ToName:   data.Name,
		Subject:  strings.TrimSpace(subject.String()),
		TextBody: strings.TrimSpace(text.String()) + "\n",
		HTMLBody: html.String(),
		Tag:      kind.String(),
	}, nil
}
