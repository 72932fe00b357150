package core

import (
	"strings"

	"golang.org/x/text/cases"
)

// MatchesCriteria reports whether msg satisfies every set predicate of criteria.
// Criteria referencing an absent message field never match.
func MatchesCriteria(msg *NormalizedMessage, criteria *FilterCriteria) bool {
	if criteria.IsEmpty() {
		return true
	}
	if msg == nil {
		return false
	}

	// Caser holds state, one per call keeps this safe for concurrent use
	fold := cases.Fold()

	if !isBlank(criteria.From) {
		if !containsFolded(fold, senderHaystack(msg), criteria.From) {
			return false
		}
	}

	if !isBlank(criteria.To) {
		if !anyRecipientContains(fold, msg.ToAddresses, criteria.To) {
			return false
		}
	}

	if !isBlank(criteria.Subject) {
		if !containsFolded(fold, msg.Subject, criteria.Subject) {
			return false
		}
	}

	if !isBlank(criteria.Body) {
		if !containsFolded(fold, bodyHaystack(msg), criteria.Body) {
			return false
		}
	}

	if criteria.HasAttachment && !msg.HasAttachment {
		return false
	}

	return true
}

// containsFolded is a case-insensitive substring test; an empty haystack never matches
func containsFolded(fold cases.Caser, haystack, needle string) bool {
	if haystack == "" {
		return false
	}
	return strings.Contains(fold.String(haystack), fold.String(strings.TrimSpace(needle)))
}

func senderHaystack(msg *NormalizedMessage) string {
	switch {
	case msg.FromName != "" && msg.FromAddress != "":
		return msg.FromName + " " + msg.FromAddress
	case msg.FromAddress != "":
		return msg.FromAddress
	default:
		return msg.FromName
	}
}

func bodyHaystack(msg *NormalizedMessage) string {
	switch {
	case msg.BodyText != "" && msg.BodyHTML != "":
		return msg.BodyText + "\n" + msg.BodyHTML
	case msg.BodyText != "":
		return msg.BodyText
	default:
		return msg.BodyHTML
	}
}

// anyRecipientContains tests each recipient on its own so a needle never spans two addresses
func anyRecipientContains(fold cases.Caser, recipients []string, needle string) bool {
	for _, addr := range recipients {
		if isBlank(addr) {
			continue
		}
		if containsFolded(fold, addr, needle) {
			return true
		}
	}
	return false
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
