package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Reference is one bibliographic entry extracted from a document.
// Optional scalars are pointers and optional lists are nil slices, so a
// missing key and an explicit JSON null both read as absent.
type Reference struct {
	Identifier  string       `json:"identifier"`
	Year        Year         `json:"year,omitempty"`
	Title       *string      `json:"title,omitempty"`
	Authors     []Author     `json:"authors"`
	DOI         *string      `json:"doi,omitempty"`
	Source      *string      `json:"source,omitempty"`
	Volume      *string      `json:"volume,omitempty"`
	Issue       *string      `json:"issue,omitempty"`
	Pages       *string      `json:"pages,omitempty"`
	Identifiers []Identifier `json:"identifiers"`
}

// Author is a single reference author. Empty strings count as absent.
type Author struct {
	GivenNames string `json:"givennames,omitempty"`
	Surname    string `json:"surname,omitempty"`
}

// Identifier names a reference in an alternate scheme such as arXiv or ISBN.
type Identifier struct {
	Type  string `json:"identifier_type"`
	Value string `json:"identifier"`
}

// ReferenceList is the payload served for a document's references.
type ReferenceList struct {
	References []Reference `json:"references"`
}

// ReferenceSet is the stored form of a document's references.
type ReferenceSet struct {
	DocumentID   string      `json:"document_id"`
	ExtractionID string      `json:"extraction_id"`
	Extracted    time.Time   `json:"extracted"`
	References   []Reference `json:"references"`
}

// Find returns the reference with the given identifier.
func (s *ReferenceSet) Find(identifier string) (Reference, bool) {
	for _, ref := range s.References {
		if ref.Identifier == identifier {
			return ref, true
		}
	}
	return Reference{}, false
}

// Year keeps the publication year verbatim. Upstream extractors emit it
// either as a JSON number or as a string.
type Year string

// UnmarshalJSON accepts strings, numbers and null.
func (y *Year) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*y = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode year: %w", err)
		}
		*y = Year(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode year: %w", err)
	}
	*y = Year(n.String())
	return nil
}

// MarshalJSON writes integral years as numbers and everything else as strings.
func (y Year) MarshalJSON() ([]byte, error) {
	if n, err := strconv.Atoi(string(y)); err == nil && strconv.Itoa(n) == string(y) {
		return []byte(y), nil
	}
	return json.Marshal(string(y))
}

// String returns the year as received.
func (y Year) String() string {
	return string(y)
}
