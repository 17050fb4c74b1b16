// Package resolve picks the external page a reference should redirect to.
package resolve

import (
	"fmt"
	"net/url"

	"github.com/DeafMist/reflink/backend/internal/models"
)

// URL templates for each external target.
const (
	urlTemplateArXiv   = "https://arxiv.org/abs/%s"
	urlTemplateDOI     = "https://dx.doi.org/%s"
	urlTemplateISBN    = "https://www.worldcat.org/isbn/%s"
	urlTemplateScholar = "https://scholar.google.com/scholar?%s"
)

// Kind names the scheme used for a redirect.
type Kind string

const (
	KindArXiv   Kind = "arxiv"
	KindDOI     Kind = "doi"
	KindISBN    Kind = "isbn"
	KindScholar Kind = "scholar"
)

// Target is where a reference resolves to.
type Target struct {
	Kind Kind
	URL  string
}

// Resolve returns the preferred external target for ref: arXiv, then DOI,
// then ISBN, then a Google Scholar search built from the title. It reports
// false when the reference carries none of these.
func Resolve(ref models.Reference) (Target, bool) {
	ids := identifiers(ref)

	if id, ok := ids[string(KindArXiv)]; ok {
		return Target{Kind: KindArXiv, URL: fmt.Sprintf(urlTemplateArXiv, id)}, true
	}
	if ref.DOI != nil && *ref.DOI != "" {
		return Target{Kind: KindDOI, URL: fmt.Sprintf(urlTemplateDOI, *ref.DOI)}, true
	}
	if id, ok := ids[string(KindISBN)]; ok {
		return Target{Kind: KindISBN, URL: fmt.Sprintf(urlTemplateISBN, id)}, true
	}
	if ref.Title != nil && *ref.Title != "" {
		return Target{Kind: KindScholar, URL: fmt.Sprintf(urlTemplateScholar, ScholarQuery(ref))}, true
	}
	return Target{}, false
}

// identifiers indexes non-empty alternate identifiers by type. A later
// identifier of the same type wins.
func identifiers(ref models.Reference) map[string]string {
	out := make(map[string]string, len(ref.Identifiers))
	for _, ident := range ref.Identifiers {
		if ident.Value != "" {
			out[ident.Type] = ident.Value
		}
	}
	return out
}

// ScholarQuery encodes the advanced-search parameters for a reference.
func ScholarQuery(ref models.Reference) string {
	q := url.Values{}
	if ref.Title != nil && *ref.Title != "" {
		q.Add("as_q", *ref.Title)
	}
	for _, a := range ref.Authors {
		switch {
		case a.Surname != "" && a.GivenNames != "":
			q.Add("as_sauthors", `"`+a.GivenNames+" "+a.Surname+`"`)
		case a.Surname != "":
			q.Add("as_sauthors", a.Surname)
		}
	}
	if ref.Source != nil && *ref.Source != "" {
		q.Add("as_publication", *ref.Source)
	}
	if year := ref.Year.String(); year != "" {
		q.Add("as_ylo", year)
		q.Add("as_yhi", year)
	}
	return q.Encode()
}
