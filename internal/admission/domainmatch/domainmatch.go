// Package domainmatch decides whether an email address belongs to an
// organization's allow-listed domains. Pure functions only.
package domainmatch

import (
	"strings"

	"civicflow/pkg/email"
	stringsx "civicflow/pkg/platform/strings"
)

// Matches reports whether the address's domain is covered by the allow-list.
// The domain must equal an allow-listed domain or be a dot-suffix of one, so
// mail.city.gov.sa matches an allow-listed city.gov.sa. An empty allow-list
// claims no email, and a malformed address matches nothing; both force manual
// review rather than accidental auto-approval.
func Matches(address string, domains []string) bool {
	_, ok := MatchedDomain(address, domains)
	return ok
}

// MatchedDomain returns the allow-list entry that covers the address, for
// audit snapshots. ok=false when nothing matches.
func MatchedDomain(address string, domains []string) (string, bool) {
	domain, ok := email.Domain(address)
	if !ok {
		return "", false
	}
	for _, allowed := range stringsx.DedupeAndTrimLower(domains) {
		if domain == allowed || strings.HasSuffix(domain, "."+allowed) {
			return allowed, true
		}
	}
	return "", false
}
