package ports

// PhraseMatcher finds tie-break phrases in zoning rule text using multi-pattern
// matching. A single pass over the description reports every configured phrase
// it contains, however many phrases the vocabulary holds.
//
// Matching is exact and case-sensitive: "Whichever is less" does not match
// "whichever is less". Callers that want case folding normalize first.
type PhraseMatcher interface {
	// Match returns the distinct phrases found in content, in no particular
	// order. Returns nil if no phrase matches.
	Match(content string) []string

	// Rebuild replaces the entire phrase set. Previous phrases are discarded.
	// Returns an error if any phrase is empty.
	Rebuild(phrases []string) error
}
