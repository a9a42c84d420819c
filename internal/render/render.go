// Package render produces the HTML pages handed to embed crawlers and
// browsers. Rendering is the boundary for presentation concerns; nothing
// here decides what to show, only how.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/stormydragon/twitfix/internal/domain"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// Renderer executes the embedded page templates.
type Renderer struct {
	tmpl    *template.Template
	appName string
	baseURL string
}

// EmbedPage is everything an embed crawler needs to unfurl a post.
type EmbedPage struct {
	Record   *domain.PostRecord
	AppName  string
	BaseURL  string
	VideoURL string
	ImageURL string
	// Redirect is the canonical post URL browsers are sent to.
	Redirect string
}

// MessagePage is a human-readable notice shown instead of an embed.
type MessagePage struct {
	AppName string
	Title   string
	Text    string
}

func New(appName, baseURL string) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, appName: appName, baseURL: baseURL}, nil
}

// Embed writes the unfurl page for rec. mediaURL carries the rehosted
// video location for video posts, imageURL the selected image otherwise.
func (r *Renderer) Embed(w io.Writer, rec *domain.PostRecord, mediaURL, imageURL string) error {
	page := EmbedPage{
		Record:   rec,
		AppName:  r.appName,
		BaseURL:  r.baseURL,
		VideoURL: mediaURL,
		ImageURL: imageURL,
		Redirect: rec.SourceURL,
	}
	return r.tmpl.ExecuteTemplate(w, "embed.html.tmpl", page)
}

// Message writes a plain notice page.
func (r *Renderer) Message(w io.Writer, title, text string) error {
	return r.tmpl.ExecuteTemplate(w, "message.html.tmpl", MessagePage{
		AppName: r.appName,
		Title:   title,
		Text:    text,
	})
}
