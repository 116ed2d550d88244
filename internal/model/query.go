// Package model defines the shared data model for multi-source search.
package model

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// SearchType identifies what kind of identifier is being searched.
type SearchType string

const (
	SearchTypePhone    SearchType = "phone"
	SearchTypeEmail    SearchType = "email"
	SearchTypeINN      SearchType = "inn"
	SearchTypeSNILS    SearchType = "snils"
	SearchTypePassport SearchType = "passport"
)

// ErrEmptyQuery is returned when a query value is empty after trimming.
var ErrEmptyQuery = eris.New("query value must not be empty")

// ErrUnknownSearchType is returned for an unrecognized search type string.
var ErrUnknownSearchType = eris.New("unknown search type")

// ParseSearchType converts a string into a SearchType.
func ParseSearchType(s string) (SearchType, error) {
	switch SearchType(strings.ToLower(strings.TrimSpace(s))) {
	case SearchTypePhone:
		return SearchTypePhone, nil
	case SearchTypeEmail:
		return SearchTypeEmail, nil
	case SearchTypeINN:
		return SearchTypeINN, nil
	case SearchTypeSNILS:
		return SearchTypeSNILS, nil
	case SearchTypePassport:
		return SearchTypePassport, nil
	default:
		return "", eris.Wrapf(ErrUnknownSearchType, "%q", s)
	}
}

// Query is an immutable search request. Value is trimmed at construction
// and must never appear in logs verbatim; use Redacted instead.
type Query struct {
	Type  SearchType
	Value string
}

// NewQuery builds a Query, trimming the value. An empty value after
// trimming returns ErrEmptyQuery.
func NewQuery(t SearchType, value string) (Query, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return Query{}, ErrEmptyQuery
	}
	return Query{Type: t, Value: v}, nil
}

// Redacted returns a log-safe description of the query: type and length only.
func (q Query) Redacted() string {
	return fmt.Sprintf("%s[len=%d]", q.Type, len(q.Value))
}
