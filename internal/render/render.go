// Package render turns reference payloads into display records and HTML.
//
// Every link produced here points at the resolution endpoint of the
// reference service rather than at an external registry, so the mapping
// from identifier to target can change without touching the view.
package render

import (
	"net/url"
	"strings"

	"github.com/DeafMist/reflink/backend/internal/models"
)

const arxivType = "arxiv"

// Link is a piece of display text with an optional target. An empty Href
// means the text is rendered without a hyperlink.
type Link struct {
	Text string
	Href string
}

// Linked reports whether the text carries a hyperlink.
func (l Link) Linked() bool {
	return l.Href != ""
}

// DisplayAuthor is an author as shown in the list.
type DisplayAuthor struct {
	GivenNames string
	Surname    string
}

// DisplayIdentifier is an alternate identifier. Only arXiv identifiers carry
// a Value; other schemes show their type alone.
type DisplayIdentifier struct {
	Type  string
	Value *Link
}

// DisplayReference is a reference ready for insertion into a view. Fields
// are in display order and nil/empty values are not rendered.
type DisplayReference struct {
	Identifier  string
	Authors     []DisplayAuthor
	Year        string
	Title       *Link
	Source      *string
	Volume      *string
	Issue       *string
	Pages       *string
	DOI         *Link
	Identifiers []DisplayIdentifier
}

// ElementID is the DOM id of the reference container.
func (d DisplayReference) ElementID() string {
	return "reference-" + d.Identifier
}

// Render normalizes every reference in payload, preserving input order.
// References without an identifier are dropped: they can be neither a DOM
// id nor a resolution path segment.
func Render(payload models.ReferenceList, documentID, hostname string) []DisplayReference {
	out := make([]DisplayReference, 0, len(payload.References))
	for _, ref := range payload.References {
		if ref.Identifier == "" {
			continue
		}
		out = append(out, renderReference(ref, documentID, hostname))
	}
	return out
}

func renderReference(ref models.Reference, documentID, hostname string) DisplayReference {
	resolve := ResolveURL(ref, documentID, hostname)
	d := DisplayReference{
		Identifier: ref.Identifier,
		Year:       ref.Year.String(),
		Volume:     ref.Volume,
		Issue:      ref.Issue,
		Pages:      ref.Pages,
	}

	if ref.Authors != nil {
		d.Authors = make([]DisplayAuthor, 0, len(ref.Authors))
		for _, a := range ref.Authors {
			d.Authors = append(d.Authors, DisplayAuthor{GivenNames: a.GivenNames, Surname: a.Surname})
		}
	}

	if ref.Title != nil {
		title := Link{Text: *ref.Title}
		if ref.DOI == nil && ref.Identifiers == nil {
			title.Href = resolve
		}
		d.Title = &title
	}

	if ref.Source != nil {
		if source, ok := NormalizeSource(*ref.Source); ok {
			d.Source = &source
		}
	}

	if ref.DOI != nil {
		d.DOI = &Link{Text: *ref.DOI, Href: resolve}
	}

	if ref.Identifiers != nil {
		d.Identifiers = make([]DisplayIdentifier, 0, len(ref.Identifiers))
		for _, ident := range ref.Identifiers {
			di := DisplayIdentifier{Type: ident.Type}
			if ident.Type == arxivType {
				di.Value = &Link{Text: ident.Value, Href: resolve}
			}
			d.Identifiers = append(d.Identifiers, di)
		}
	}

	return d
}

// NormalizeSource cleans up venue strings from the extraction pipeline,
// which sometimes glues a "DOI ..." suffix onto the venue. Strings that
// contain "=" are not venue names and are rejected. Only these two rules
// apply; this is a data-quality patch, not a parser.
func NormalizeSource(source string) (string, bool) {
	if strings.Contains(source, "=") {
		return "", false
	}
	if i := strings.Index(source, "DOI"); i >= 0 {
		source = strings.TrimSpace(source[:i])
	}
	return source, true
}

// ResolveURL builds the resolution endpoint URL for a reference. Only the
// reference identifier is escaped.
func ResolveURL(ref models.Reference, documentID, hostname string) string {
	return "http://" + hostname + "/references/" + documentID + "/ref/" + EscapeComponent(ref.Identifier) + "/resolve"
}

var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EscapeComponent percent-encodes s like a browser's encodeURIComponent:
// everything except ASCII letters, digits and -_.!~*'() is escaped.
func EscapeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
