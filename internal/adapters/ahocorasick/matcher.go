// Package ahocorasick implements ports.PhraseMatcher with an Aho-Corasick automaton.
// It wraps the petar-dambovaliev/aho-corasick library for O(n + m + z) matching.
package ahocorasick

import (
	"fmt"
	"sync"

	aho "github.com/petar-dambovaliev/aho-corasick"
)

// Matcher finds tie-break phrases in zoning rule text.
// Rebuild compiles an automaton; Match returns the phrases present.
// Match may run concurrently with itself and with Rebuild.
type Matcher struct {
	mu        sync.RWMutex
	automaton aho.AhoCorasick
	phrases   []string
	built     bool
}

// New returns a matcher compiled over phrases.
func New(phrases []string) (*Matcher, error) {
	m := &Matcher{}
	if err := m.Rebuild(phrases); err != nil {
		return nil, err
	}
	return m, nil
}

// Rebuild replaces the automaton with a new set of phrases.
func (m *Matcher) Rebuild(phrases []string) error {
	for i, p := range phrases {
		if p == "" {
			return fmt.Errorf("phrase %d is empty", i)
		}
	}
	own := make([]string, len(phrases))
	copy(own, phrases)

	builder := aho.NewAhoCorasickBuilder(aho.Opts{
		DFA: true,
	})
	automaton := builder.Build(own)

	m.mu.Lock()
	m.automaton = automaton
	m.phrases = own
	m.built = true
	m.mu.Unlock()
	return nil
}

// Match returns the distinct phrases found in content.
func (m *Matcher) Match(content string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.built || len(m.phrases) == 0 {
		return nil
	}
	// Overlapping iteration so one phrase that is a prefix of another
	// ("whichever is less" / "whichever is lesser") cannot hide it.
	iter := m.automaton.IterOverlappingByte([]byte(content))

	var result []string
	seen := make(map[int]bool, len(m.phrases))
	for next := iter.Next(); next != nil; next = iter.Next() {
		idx := next.Pattern()
		if !seen[idx] {
			seen[idx] = true
			result = append(result, m.phrases[idx])
		}
	}
	return result
}

// PhraseCount returns the number of phrases in the automaton.
func (m *Matcher) PhraseCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.phrases)
}
