// internal/schema/domain_match.go
package schema

import (
	"regexp"
	"strings"
)

var schemePrefixRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// splitDomain decomposes a candidate string into (subdomains, domain, tld).
// The scheme prefix and any path/query suffix are stripped first; for email
// addresses the part after the last '@' is used. Subdomains come back in
// left-to-right order. ok is false when fewer than two labels remain.
func splitDomain(s string) (subdomains []string, domain, tld string, ok bool) {
	s = schemePrefixRegex.ReplaceAllString(s, "")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	labels := strings.Split(strings.ToLower(s), ".")
	if len(labels) < 2 {
		return nil, "", "", false
	}
	for _, l := range labels {
		if l == "" {
			return nil, "", "", false
		}
	}
	tld = labels[len(labels)-1]
	domain = labels[len(labels)-2]
	subdomains = labels[:len(labels)-2]
	return subdomains, domain, tld, true
}

// MatchDomain tests candidate against pattern. Domain and TLD must match
// exactly; subdomain labels match right-to-left, with a pattern label of "*"
// matching any candidate label at that position. The candidate must have at
// least as many subdomain labels as the pattern.
func MatchDomain(candidate, pattern string) bool {
	candSubs, candDomain, candTld, ok := splitDomain(candidate)
	if !ok {
		return false
	}
	patSubs, patDomain, patTld, ok := splitDomain(pattern)
	if !ok {
		return false
	}
	if candDomain != patDomain || candTld != patTld {
		return false
	}
	if len(candSubs) < len(patSubs) {
		return false
	}
	for i := 1; i <= len(patSubs); i++ {
		pat := patSubs[len(patSubs)-i]
		cand := candSubs[len(candSubs)-i]
		if pat != "*" && pat != cand {
			return false
		}
	}
	return true
}
