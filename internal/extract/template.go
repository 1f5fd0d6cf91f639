package extract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Known data type values used by the news corpus template.
const (
	DataTypeTraining = "Training"
	DataTypeTesting  = "Testing"
)

// TemplateConfig lists, per field, the markers tried in order; the first one
// present in the document wins. A marker is a CSS selector, optionally
// followed by "@attr" to read an attribute instead of the element text, or
// "@json:key" to read a key from the element's JSON body (JSON-LD).
type TemplateConfig struct {
	Title                []string `yaml:"title"`
	Content              []string `yaml:"content"`
	DataType             []string `yaml:"data_type"`
	Label                []string `yaml:"label"`
	TitleSuffixSeparator string   `yaml:"title_suffix_separator"`
}

// DefaultTemplateConfig returns the markers of the news corpus template:
//   - title: the <title> element, else the first <h1>; a trailing site name
//     after " | " is cut.
//   - content: JSON-LD articleBody, else the paragraphs of <article>, else
//     every <p> in <body>.
//   - data type: the <datatype> element, else <meta name="datatype">.
//   - label: the <label> element, else <meta name="label">.
func DefaultTemplateConfig() TemplateConfig {
	return TemplateConfig{
		Title:   []string{"title", "h1"},
		Content: []string{`script[type="application/ld+json"]@json:articleBody`, "article p", "body p"},
		DataType: []string{
			"datatype",
			`meta[name="datatype"]@content`,
		},
		Label: []string{
			"label",
			`meta[name="label"]@content`,
		},
		TitleSuffixSeparator: " | ",
	}
}

type marker struct {
	query   string
	attr    string
	jsonKey string
}

// HTMLTemplate is an ArticleExtractor for one fixed document template.
// It is a targeted locator over goquery selections, not a general scraper.
type HTMLTemplate struct {
	title    []marker
	content  []marker
	dataType []marker
	label    []marker
	titleSep string
}

// NewHTMLTemplate compiles cfg. Every field needs at least one valid marker.
func NewHTMLTemplate(cfg TemplateConfig) (*HTMLTemplate, error) {
	t := &HTMLTemplate{titleSep: cfg.TitleSuffixSeparator}
	var err error
	if t.title, err = parseMarkers(FieldTitle, cfg.Title); err != nil {
		return nil, err
	}
	if t.content, err = parseMarkers(FieldContent, cfg.Content); err != nil {
		return nil, err
	}
	if t.dataType, err = parseMarkers(FieldDataType, cfg.DataType); err != nil {
		return nil, err
	}
	if t.label, err = parseMarkers(FieldLabel, cfg.Label); err != nil {
		return nil, err
	}
	return t, nil
}

// NewDefaultTemplate returns the template built from DefaultTemplateConfig.
func NewDefaultTemplate() *HTMLTemplate {
	t, err := NewHTMLTemplate(DefaultTemplateConfig())
	if err != nil {
		panic(err)
	}
	return t
}

func parseMarkers(field Field, specs []string) ([]marker, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("template: no markers for %s", field)
	}
	out := make([]marker, 0, len(specs))
	for _, spec := range specs {
		m := marker{query: strings.TrimSpace(spec)}
		if i := strings.LastIndex(m.query, "@"); i >= 0 {
			suffix := m.query[i+1:]
			m.query = strings.TrimSpace(m.query[:i])
			if key, ok := strings.CutPrefix(suffix, "json:"); ok {
				m.jsonKey = key
			} else {
				m.attr = suffix
			}
		}
		if m.query == "" {
			return nil, fmt.Errorf("template: empty selector for %s", field)
		}
		if _, err := cascadia.Compile(m.query); err != nil {
			return nil, fmt.Errorf("template: invalid selector %q for %s: %w", m.query, field, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Title returns the document title with the site suffix removed.
func (t *HTMLTemplate) Title(text string) (string, error) {
	title, err := t.locate(text, FieldTitle, t.title, false)
	if err != nil {
		return "", err
	}
	if t.titleSep != "" {
		// Collapsing may have trimmed the separator's leading space.
		padded := " " + title + " "
		if i := strings.LastIndex(padded, t.titleSep); i >= 0 {
			title = strings.TrimSpace(padded[:i])
		}
	}
	return title, nil
}

// Content returns the article body as plain text. All elements matched by the
// winning marker are joined with single spaces.
func (t *HTMLTemplate) Content(text string) (string, error) {
	return t.locate(text, FieldContent, t.content, true)
}

// DataType returns the document's data type (e.g. "Training" or "Testing").
func (t *HTMLTemplate) DataType(text string) (string, error) {
	return t.locate(text, FieldDataType, t.dataType, false)
}

// Label returns the classification label attached to the document.
func (t *HTMLTemplate) Label(text string) (string, error) {
	return t.locate(text, FieldLabel, t.label, false)
}

func (t *HTMLTemplate) locate(text string, field Field, markers []marker, all bool) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}
	for _, m := range markers {
		if v, ok := m.value(doc, all); ok {
			return v, nil
		}
	}
	return "", &FieldNotFoundError{Field: field}
}

// value reports the marker's value and whether the marker is present.
func (m marker) value(doc *goquery.Document, all bool) (string, bool) {
	sel := doc.Find(m.query)
	if sel.Length() == 0 {
		return "", false
	}
	switch {
	case m.jsonKey != "":
		var found string
		ok := false
		sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found, ok = jsonString(s.Text(), m.jsonKey)
			return !ok
		})
		if !ok {
			return "", false
		}
		return stripMarkup(found), true
	case m.attr != "":
		v, exists := sel.First().Attr(m.attr)
		if !exists {
			return "", false
		}
		return collapseSpace(v), true
	case all:
		parts := make([]string, 0, sel.Length())
		sel.Each(func(_ int, s *goquery.Selection) {
			if p := collapseSpace(s.Text()); p != "" {
				parts = append(parts, p)
			}
		})
		return strings.Join(parts, " "), true
	default:
		return collapseSpace(sel.First().Text()), true
	}
}

// stripMarkup removes tags and decodes entities from an HTML fragment.
func stripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseSpace(s)
	}
	return collapseSpace(doc.Text())
}

// jsonString finds the first string value stored under key in a JSON-LD body,
// searching objects, arrays and "@graph" depth-first.
func jsonString(body, key string) (string, bool) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &v); err != nil {
		return "", false
	}
	return findKey(v, key)
}

func findKey(v any, key string) (string, bool) {
	switch x := v.(type) {
	case map[string]any:
		if s, ok := x[key].(string); ok {
			return s, true
		}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := findKey(x[k], key); ok {
				return s, true
			}
		}
	case []any:
		for _, child := range x {
			if s, ok := findKey(child, key); ok {
				return s, true
			}
		}
	}
	return "", false
}
