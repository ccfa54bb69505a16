package valueobjects

import "github.com/google/uuid"

// canonicalUUIDLen is the length of the hyphenated 8-4-4-4-12 form.
const canonicalUUIDLen = 36

// UUIDProvider generates and validates comment identifiers as UUIDs.
type UUIDProvider struct{}

// NewUUIDProvider returns the default identifier provider.
func NewUUIDProvider() UUIDProvider {
	return UUIDProvider{}
}

// MakeID returns a fresh random identifier.
func (UUIDProvider) MakeID() string {
	return uuid.New().String()
}

// IsValidID reports whether candidate is a UUID in the hyphenated 8-4-4-4-12
// form. Braced, urn:uuid: and unhyphenated spellings are rejected so one
// comment cannot be stored under several ids.
func (UUIDProvider) IsValidID(candidate string) bool {
	if len(candidate) != canonicalUUIDLen {
		return false
	}
	_, err := uuid.Parse(candidate)
	return err == nil
}
