package models

// DigestType controls how often the e-mail digest is sent to a member.
type DigestType string

const (
	DigestDaily  DigestType = "daily"
	DigestWeekly DigestType = "weekly"
	DigestNone   DigestType = "no"

	DefaultDigestType = DigestWeekly
)

// DigestTypes lists the choices in display order.
var DigestTypes = []DigestType{DigestDaily, DigestWeekly, DigestNone}

// Valid reports whether d is one of DigestTypes.
func (d DigestType) Valid() bool {
	for _, t := range DigestTypes {
		if d == t {
			return true
		}
	}
	return false
}

// DigestChoices is the choice source for the digest subscription field.
type DigestChoices struct{}

// Contains implements validation.ChoiceSource.
func (DigestChoices) Contains(value string) bool { return DigestType(value).Valid() }
