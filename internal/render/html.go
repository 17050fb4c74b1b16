package render

import (
	"context"

	"github.com/a-h/templ"
	templruntime "github.com/a-h/templ/runtime"
)

// ListElementID is the id of the region that holds the reference list or
// the message that replaces it.
const ListElementID = "reference-list"

// ReferenceItem renders one reference as an <li> whose children are tagged
// by semantic role.
func ReferenceItem(ref DisplayReference) templ.Component {
	return component(func(_ context.Context, w *htmlWriter) {
		w.raw(`<li class="reference" id="`)
		w.text(ref.ElementID())
		w.raw(`">`)

		if ref.Authors != nil {
			w.raw(`<span class="reference-authors">`)
			for _, a := range ref.Authors {
				w.raw(`<span class="reference-author">`)
				if a.GivenNames != "" {
					w.span("reference-author-givennames", a.GivenNames)
				}
				if a.Surname != "" {
					w.span("reference-author-surname", a.Surname)
				}
				w.raw(`</span>`)
			}
			w.raw(`</span>`)
		}

		w.span("reference-year", ref.Year)

		if ref.Title != nil {
			w.linkSpan("reference-title", *ref.Title)
		}
		if ref.Source != nil {
			w.span("reference-source", *ref.Source)
		}
		if ref.Volume != nil {
			w.span("reference-volume", *ref.Volume)
		}
		if ref.Issue != nil {
			w.span("reference-issue", *ref.Issue)
		}
		if ref.Pages != nil {
			w.span("reference-pages", *ref.Pages)
		}
		if ref.DOI != nil {
			w.linkSpan("reference-doi", *ref.DOI)
		}
		for _, ident := range ref.Identifiers {
			w.raw(`<span class="reference-identifier">`)
			w.span("reference-identifier-type", ident.Type)
			if ident.Value != nil {
				w.linkSpan("reference-identifier-value", *ident.Value)
			}
			w.raw(`</span>`)
		}

		w.raw(`</li>`)
	})
}

// ReferenceList renders the full list region.
func ReferenceList(refs []DisplayReference) templ.Component {
	return component(func(ctx context.Context, w *htmlWriter) {
		w.raw(`<ol id="` + ListElementID + `" class="references">`)
		for _, ref := range refs {
			w.child(ctx, ReferenceItem(ref))
		}
		w.raw(`</ol>`)
	})
}

// Message renders a single human-readable message in place of the list.
func Message(text string) templ.Component {
	return component(func(_ context.Context, w *htmlWriter) {
		w.raw(`<div id="` + ListElementID + `" class="references references-message">`)
		w.text(text)
		w.raw(`</div>`)
	})
}

// Page wraps body in a minimal HTML document for the given document id.
func Page(documentID string, body templ.Component) templ.Component {
	return component(func(ctx context.Context, w *htmlWriter) {
		title := "References for " + documentID
		w.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
		w.text(title)
		w.raw(`</title></head><body><h1>`)
		w.text(title)
		w.raw(`</h1>`)
		w.child(ctx, body)
		w.raw(`</body></html>`)
	})
}

// component adapts a body function to templ's buffered rendering: nested
// components share the caller's buffer, and the outermost one flushes it.
func component(body func(ctx context.Context, w *htmlWriter)) templ.Component {
	return templruntime.GeneratedTemplate(func(in templruntime.GeneratedComponentInput) (err error) {
		if err := in.Context.Err(); err != nil {
			return err
		}
		buf, existing := templruntime.GetBuffer(in.Writer)
		if !existing {
			defer func() {
				if releaseErr := templruntime.ReleaseBuffer(buf); err == nil {
					err = releaseErr
				}
			}()
		}

		w := &htmlWriter{buf: buf}
		body(in.Context, w)
		return w.err
	})
}

// htmlWriter writes markup to a templ buffer and keeps the first error.
type htmlWriter struct {
	buf *templruntime.Buffer
	err error
}

func (w *htmlWriter) raw(s string) {
	if w.err != nil {
		return
	}
	_, w.err = w.buf.WriteString(s)
}

func (w *htmlWriter) text(s string) {
	if w.err != nil {
		return
	}
	var v string
	if v, w.err = templ.JoinStringErrs(s); w.err != nil {
		return
	}
	_, w.err = w.buf.WriteString(templ.EscapeString(v))
}

func (w *htmlWriter) child(ctx context.Context, c templ.Component) {
	if w.err != nil {
		return
	}
	w.err = c.Render(ctx, w.buf)
}

func (w *htmlWriter) span(class, text string) {
	w.raw(`<span class="` + class + `">`)
	w.text(text)
	w.raw(`</span>`)
}

func (w *htmlWriter) linkSpan(class string, l Link) {
	if !l.Linked() {
		w.span(class, l.Text)
		return
	}
	w.raw(`<span class="` + class + `"><a href="`)
	w.text(l.Href)
	w.raw(`">`)
	w.text(l.Text)
	w.raw(`</a></span>`)
}
