package valueobjects

import (
	pkgerrors "comments-api/pkg/errors"
)

// IPValidator decides whether a string is an acceptable origin address.
type IPValidator interface {
	IsValidIP(candidate string) bool
}

// SourceFields is the raw, unvalidated origin of a comment.
type SourceFields struct {
	IP       string `json:"ip"`
	Browser  string `json:"browser,omitempty"`
	Referrer string `json:"referrer,omitempty"`
}

// Source is the validated origin of a comment. It cannot exist without a
// valid IP.
type Source struct {
	ip       string
	browser  string
	referrer string
}

// SourceFactory builds Sources against an injected IP predicate.
type SourceFactory struct {
	ips IPValidator
}

// NewSourceFactory creates a SourceFactory.
func NewSourceFactory(ips IPValidator) *SourceFactory {
	return &SourceFactory{ips: ips}
}

// MakeSource validates fields and returns the Source.
func (f *SourceFactory) MakeSource(fields SourceFields) (Source, error) {
	if fields.IP == "" {
		return Source{}, pkgerrors.ErrMissingOriginIP
	}
	if !f.ips.IsValidIP(fields.IP) {
		return Source{}, pkgerrors.ErrInvalidOriginIP
	}
	return Source{
		ip:       fields.IP,
		browser:  fields.Browser,
		referrer: fields.Referrer,
	}, nil
}

func (s Source) IP() string       { return s.ip }
func (s Source) Browser() string  { return s.browser }
func (s Source) Referrer() string { return s.referrer }

// Fields returns the flat representation used by records.
func (s Source) Fields() SourceFields {
	return SourceFields{IP: s.ip, Browser: s.browser, Referrer: s.referrer}
}
