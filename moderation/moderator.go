package moderation

import (
	"log/slog"
	"public-feed/errors"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Moderator rejects messages whose author or body contains a deny-listed term.
// Matching is a case-insensitive substring search. With normalize enabled,
// leet speak and punctuation noise are folded away before searching
// ("B.0.t" matches "bot").
type Moderator struct {
	matcher   *goahocorasick.Machine
	terms     []string
	normalize bool
	log       *slog.Logger
}

// NewModerator initializes the Aho-Corasick automaton with a normalized version of the provided deny-list.
// Terms that are empty once normalized are ignored.
func NewModerator(terms []string, normalize bool, log *slog.Logger) (Moderator, error) {
	patterns := make([][]rune, 0, len(terms))
	kept := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		pattern := fold([]rune(term), normalize)
		if len(pattern) == 0 {
			continue
		}
		// the automaton does not accept duplicate keywords
		if _, dup := seen[string(pattern)]; dup {
			continue
		}
		seen[string(pattern)] = struct{}{}
		patterns = append(patterns, pattern)
		kept = append(kept, term)
	}
	if len(patterns) == 0 {
		return Moderator{normalize: normalize, log: log}, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, terms: kept, normalize: normalize, log: log}, nil
}

func (m Moderator) Terms() []string { return m.terms }

// Moderate returns nil when the message is admissible, a *errors.RejectedError otherwise.
func (m Moderator) Moderate(author, body string) error {
	if m.matcher == nil {
		return nil
	}
	found := append(m.search(author), m.search(body)...)
	if len(found) == 0 {
		return nil
	}
	found = lo.Uniq(found)
	m.log.Warn("Message rejected by moderation",
		"author", author,
		"terms", found,
		"lang", whatlanggo.Detect(body).Lang.Iso6391())
	return errors.NewRejected(found)
}

func (m Moderator) search(text string) []string {
	content := fold([]rune(text), m.normalize)
	if len(content) == 0 {
		return nil
	}
	spans := m.matcher.MultiPatternSearch(content, false)
	return lo.Map(spans, func(span *goahocorasick.Term, _ int) string {
		return string(span.Word)
	})
}

func fold(input []rune, normalize bool) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if normalize {
			r = simplifyRune(r)
			if isNoise(r) {
				continue
			}
		}
		out = append(out, unicode.ToLower(r))
	}
	return out
}

// simplifyRune maps common Leet speak characters back to their standard alphabet counterparts.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

// isNoise identifies characters that should be ignored during the pattern matching phase.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}

// Gate holds the moderator currently in use. The deny-list is data:
// Swap installs a new one without restarting anything.
type Gate struct {
	current atomic.Pointer[Moderator]
}

func NewGate(m Moderator) *Gate {
	g := &Gate{}
	g.current.Store(&m)
	return g
}

func (g *Gate) Moderate(author, body string) error {
	return g.current.Load().Moderate(author, body)
}

func (g *Gate) Swap(m Moderator) {
	g.current.Store(&m)
}

func (g *Gate) Terms() []string {
	return g.current.Load().Terms()
}

// SameTerms reports whether two deny-lists hold the same terms, ignoring order and case.
func SameTerms(a, b []string) bool {
	normalize := func(terms []string) []string {
		return lo.Uniq(lo.Map(terms, func(t string, _ int) string { return strings.ToLower(strings.TrimSpace(t)) }))
	}
	left, right := normalize(a), normalize(b)
	if len(left) != len(right) {
		return false
	}
	return len(lo.Without(left, right...)) == 0
}
