package zoning

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/corey/mapbuilder/internal/ports"
)

// Kind classifies how a rule's numbers combine into one effective value.
type Kind int

const (
	KindUnparseable    Kind = iota // no numerals in the description
	KindFixed                      // no tie-break phrase: first number wins
	KindConditionalMin             // "whichever is less"
	KindConditionalMax             // "whichever is greater"
)

// Default tie-break phrases.
const (
	PhraseLess    = "whichever is less"
	PhraseGreater = "whichever is greater"
)

var kindNames = map[Kind]string{
	KindUnparseable:    "unparseable",
	KindFixed:          "fixed",
	KindConditionalMin: "conditional-min",
	KindConditionalMax: "conditional-max",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown rule kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown rule kind %q", text)
}

// Rule is the parsed form of one zoning rule description.
type Rule struct {
	Description string    `json:"description"`
	Kind        Kind      `json:"kind"`
	Values      []float64 `json:"values,omitempty"`
}

// Resolve applies the rule's tie-break policy. Returns false for an
// unparseable rule.
func (r Rule) Resolve() (float64, bool) {
	if r.Kind == KindUnparseable {
		return 0, false
	}
	return resolve(r.Kind, r.Values)
}

// MarshalJSON writes values that overflowed float64 as null.
func (r Rule) MarshalJSON() ([]byte, error) {
	type plain Rule
	var values []*float64
	for _, v := range r.Values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			values = append(values, nil)
			continue
		}
		v := v
		values = append(values, &v)
	}
	return json.Marshal(struct {
		plain
		Values []*float64 `json:"values,omitempty"`
	}{plain(r), values})
}

// Min returns the smallest value regardless of the rule's kind.
func (r Rule) Min() (float64, bool) {
	if len(r.Values) == 0 {
		return 0, false
	}
	return minOf(r.Values), true
}

// Vocabulary maps a tie-break phrase to the kind it selects. Only
// KindConditionalMin and KindConditionalMax are meaningful targets.
type Vocabulary map[string]Kind

// DefaultVocabulary returns the two phrases found in provider zoning data.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		PhraseLess:    KindConditionalMin,
		PhraseGreater: KindConditionalMax,
	}
}

// Parser classifies rule descriptions against a phrase vocabulary.
// A Parser is immutable after construction and safe for concurrent use
// as long as its matcher is.
type Parser struct {
	vocab   Vocabulary
	matcher ports.PhraseMatcher
}

// NewParser builds a parser over vocab. A nil matcher falls back to
// substring containment; the result is the same either way.
func NewParser(vocab Vocabulary, matcher ports.PhraseMatcher) (*Parser, error) {
	if len(vocab) == 0 {
		vocab = DefaultVocabulary()
	}

	phrases := make([]string, 0, len(vocab))
	own := make(Vocabulary, len(vocab))
	for phrase, kind := range vocab {
		if phrase == "" {
			return nil, fmt.Errorf("empty tie-break phrase")
		}
		if kind != KindConditionalMin && kind != KindConditionalMax {
			return nil, fmt.Errorf("phrase %q: kind must be %s or %s, got %s",
				phrase, KindConditionalMin, KindConditionalMax, kind)
		}
		own[phrase] = kind
		phrases = append(phrases, phrase)
	}
	sort.Strings(phrases)

	if matcher == nil {
		matcher = &containsMatcher{}
	}
	if err := matcher.Rebuild(phrases); err != nil {
		return nil, fmt.Errorf("build phrase matcher: %w", err)
	}
	return &Parser{vocab: own, matcher: matcher}, nil
}

// Parse extracts the numbers in description and tags them with the
// tie-break policy the description names.
func (p *Parser) Parse(description string) Rule {
	values := ExtractNumbers(description)
	if values == nil {
		return Rule{Description: description, Kind: KindUnparseable}
	}
	return Rule{Description: description, Kind: p.policy(description), Values: values}
}

// policy returns the tie-break kind named in description. A min phrase
// outranks a max phrase when both appear.
func (p *Parser) policy(description string) Kind {
	kind := KindFixed
	for _, phrase := range p.matcher.Match(description) {
		switch p.vocab[phrase] {
		case KindConditionalMin:
			return KindConditionalMin
		case KindConditionalMax:
			kind = KindConditionalMax
		}
	}
	return kind
}

// Phrases returns the vocabulary's phrases in sorted order.
func (p *Parser) Phrases() []string {
	out := make([]string, 0, len(p.vocab))
	for phrase := range p.vocab {
		out = append(out, phrase)
	}
	sort.Strings(out)
	return out
}

var defaultParser = mustParser(NewParser(DefaultVocabulary(), nil))

func mustParser(p *Parser, err error) *Parser {
	if err != nil {
		panic(err)
	}
	return p
}

// Parse classifies description with the default vocabulary.
func Parse(description string) Rule {
	return defaultParser.Parse(description)
}

// containsMatcher is the in-process PhraseMatcher: one strings.Contains per
// phrase. Fine for a handful of phrases.
type containsMatcher struct {
	phrases []string
}

func (m *containsMatcher) Match(content string) []string {
	var found []string
	for _, phrase := range m.phrases {
		if strings.Contains(content, phrase) {
			found = append(found, phrase)
		}
	}
	return found
}

func (m *containsMatcher) Rebuild(phrases []string) error {
	for _, phrase := range phrases {
		if phrase == "" {
			return fmt.Errorf("empty phrase")
		}
	}
	m.phrases = append([]string(nil), phrases...)
	return nil
}
