package output

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"

	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
)

// Type selects the output shape.
type Type string

const (
	TypeMonolith Type = "monolith"
	TypeHTMLCSS  Type = "htmlCss"
)

// ErrUnknownType is returned for an unsupported output type.
var ErrUnknownType = errors.New("unknown output type")

// ParseType validates s. The empty string selects the monolith default.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case "":
		return TypeMonolith, nil
	case TypeMonolith, TypeHTMLCSS:
		return Type(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Output is the shaped document handed to save callbacks.
type Output struct {
	Type    Type   `json:"type"`
	HTML    string `json:"html"`
	CSS     string `json:"css,omitempty"`
	Charset string `json:"charset,omitempty"`
}

// Options configures a Shaper.
type Options struct {
	// Sanitize strips scripts and unsafe attributes from builder markup.
	Sanitize bool
}

// Shaper converts builder output into an Output.
type Shaper struct {
	policy *bluemonday.Policy
}

// NewShaper creates a shaper.
func NewShaper(opts Options) *Shaper {
	s := &Shaper{}
	if opts.Sanitize {
		p := bluemonday.UGCPolicy()
		p.AllowStyling()
		p.AllowAttrs("style").Globally()
		s.policy = p
	}
	return s
}

// Create shapes raw according to t.
func (s *Shaper) Create(t Type, raw protocol.BuilderOutput) (Output, error) {
	markup := raw.HTML
	if s.policy != nil {
		markup = s.policy.Sanitize(markup)
	}

	var (
		out Output
		err error
	)
	switch t {
	case TypeMonolith, "":
		out, err = monolith(markup, raw)
	case TypeHTMLCSS:
		out = Output{Type: TypeHTMLCSS, HTML: markup, CSS: stylesheet(raw)}
	default:
		return Output{}, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if err != nil {
		return Output{}, err
	}

	out.Charset = detectCharset(out.HTML)
	return out, nil
}

func monolith(markup string, raw protocol.BuilderOutput) (Output, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Output{}, fmt.Errorf("parse builder html: %w", err)
	}

	head := doc.Find("head")
	if head.Find(`meta[charset]`).Length() == 0 {
		head.PrependHtml(`<meta charset="utf-8">`)
	}
	for _, font := range raw.Fonts {
		head.AppendHtml(fmt.Sprintf(`<link rel="stylesheet" href="%s">`, html.EscapeString(font)))
	}
	for _, style := range raw.Styles {
		head.AppendHtml(fmt.Sprintf(`<style id="%s">%s</style>`,
			html.EscapeString(style.ID), safeCSS(style.CSS)))
	}

	rendered, err := goquery.OuterHtml(doc.Selection.Children())
	if err != nil {
		return Output{}, fmt.Errorf("render monolith: %w", err)
	}
	return Output{Type: TypeMonolith, HTML: "<!DOCTYPE html>" + rendered}, nil
}

func stylesheet(raw protocol.BuilderOutput) string {
	var b strings.Builder
	for _, font := range raw.Fonts {
		fmt.Fprintf(&b, "@import url(%q);\n", font)
	}
	for _, style := range raw.Styles {
		b.WriteString(style.CSS)
		if !strings.HasSuffix(style.CSS, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// safeCSS keeps a stylesheet from closing its own <style> element.
func safeCSS(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}

func detectCharset(doc string) string {
	if doc == "" {
		return ""
	}
	res, err := chardet.NewHtmlDetector().DetectBest([]byte(doc))
	if err != nil {
		return ""
	}
	return strings.ToLower(res.Charset)
}
