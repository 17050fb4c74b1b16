// Package processing prepares extracted reference sets for storage.
package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/DeafMist/reflink/backend/internal/models"
)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

// CleanText decodes HTML entities, strips punctuation, lowercases and
// squeezes whitespace so that cosmetic extraction differences hash alike.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = punctuation.ReplaceAllString(decoded, " ")
	decoded = whitespace.ReplaceAllString(decoded, " ")
	return strings.ToLower(strings.TrimSpace(decoded))
}

// BuildReferenceID hashes the most stable fields of a reference into a
// deterministic identifier.
func BuildReferenceID(ref models.Reference) string {
	parts := []string{
		CleanText(deref(ref.Title)),
		ref.Year.String(),
		strings.ToLower(strings.TrimSpace(deref(ref.DOI))),
		CleanText(deref(ref.Source)),
	}
	for _, a := range ref.Authors {
		parts = append(parts, CleanText(a.Surname))
	}
	for _, ident := range ref.Identifiers {
		parts = append(parts, ident.Type+":"+strings.TrimSpace(ident.Value))
	}
	s := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(s[:])
}

// AssignIdentifiers gives every reference without an identifier its content
// hash and returns how many were assigned. Identical references receive
// the same hash, so later duplicates get a positional suffix to keep
// identifiers unique within the set.
func AssignIdentifiers(refs []models.Reference) int {
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if ref.Identifier != "" {
			seen[ref.Identifier] = struct{}{}
		}
	}

	assigned := 0
	for i := range refs {
		if refs[i].Identifier != "" {
			continue
		}
		id := BuildReferenceID(refs[i])
		if _, dup := seen[id]; dup {
			id = id + "-" + strconv.Itoa(i)
		}
		seen[id] = struct{}{}
		refs[i].Identifier = id
		assigned++
	}
	return assigned
}

// BuildSetKey identifies one extraction of a document for deduplication.
func BuildSetKey(set models.ReferenceSet) string {
	if set.ExtractionID != "" {
		return set.DocumentID + "/" + set.ExtractionID
	}
	ids := make([]string, 0, len(set.References))
	for _, ref := range set.References {
		ids = append(ids, ref.Identifier)
	}
	s := sha1.Sum([]byte(set.DocumentID + "|" + strings.Join(ids, ",")))
	return set.DocumentID + "/" + hex.EncodeToString(s[:])
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
