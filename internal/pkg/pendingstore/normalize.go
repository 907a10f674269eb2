package pendingstore

import "strings"

// syntheticPrefix marks a target email that is really a processor customer id.
// Used when a tier change arrives before the customer's email is known; an
// account created later with the placeholder identity can still be matched.
const syntheticPrefix = "processor_customer_"

// SyntheticKey builds the placeholder identity for a processor customer.
func SyntheticKey(customerID string) string {
	return syntheticPrefix + strings.TrimSpace(customerID)
}

// IsSyntheticKey reports whether the value is a placeholder identity rather
// than a real email address. Synthetic keys are matched case-sensitively.
func IsSyntheticKey(email string) bool {
	return strings.HasPrefix(strings.TrimSpace(email), syntheticPrefix)
}

// NormalizeEmailKey is the single place the matching-identity heuristic lives.
// Real emails are trimmed and case-folded; synthetic keys are kept verbatim.
func NormalizeEmailKey(email string) string {
	e := strings.TrimSpace(email)
	if IsSyntheticKey(e) {
		return e
	}
	return strings.ToLower(e)
}

// matchKeysForEmail expands an email into every target-email key a pending
// update could have been staged under: the raw and lower-cased forms, plus the
// synthetic form built from the email itself (covers accounts created with a
// placeholder before their real email was known). Synthetic input matches
// exactly and nothing else.
func matchKeysForEmail(email string) []string {
	e := strings.TrimSpace(email)
	if e == "" {
		return nil
	}
	if IsSyntheticKey(e) {
		return []string{e}
	}

	lower := strings.ToLower(e)
	keys := []string{lower}
	if e != lower {
		keys = append(keys, e)
	}
	return append(keys, SyntheticKey(lower))
}
