// Package regexgen synthesizes strings that fully match a regular expression.
//
// Patterns use Go's RE2 syntax. Supported constructs: literals, character classes
// (ranges and negation), the any-character dot, alternation, groups, the *, +, ?
// and {m,n} quantifiers, and anchors or word boundaries (which emit nothing).
// Backreferences and lookaround fail to parse and are reported as
// apperr.ErrUnsupportedPattern.
package regexgen

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"regexp/syntax"
	"strings"
	"unicode/utf8"

	"github.com/starford/ofmock/internal/apperr"
)

// DefaultRepetitionCap bounds the upper end of unbounded quantifiers (min + cap).
const DefaultRepetitionCap = 10

const maxAttempts = 64

// ErrBoundsWidened is returned with a valid value when no candidate satisfied both
// the pattern and the requested length bounds.
var ErrBoundsWidened = errors.New("length bounds widened to satisfy pattern")

// Unbounded marks a missing maximum length.
const Unbounded = -1

// Bounds are inclusive rune-length limits. Max == Unbounded means no upper limit.
type Bounds struct {
	Min int
	Max int
}

// Pattern is a compiled pattern ready for synthesis. It is safe for concurrent use.
type Pattern struct {
	source string
	ast    *syntax.Regexp
	full   *regexp.Regexp
	cap    int
}

// Compile parses pattern. Unbounded quantifiers repeat at most repetitionCap
// times beyond their minimum; values below 1 select DefaultRepetitionCap.
func Compile(pattern string, repetitionCap int) (*Pattern, error) {
	if repetitionCap < 1 {
		repetitionCap = DefaultRepetitionCap
	}
	ast, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", apperr.ErrUnsupportedPattern, pattern, err)
	}
	full, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", apperr.ErrUnsupportedPattern, pattern, err)
	}
	return &Pattern{source: pattern, ast: ast, full: full, cap: repetitionCap}, nil
}

func (p *Pattern) String() string { return p.source }

// Match reports whether s matches the whole pattern.
func (p *Pattern) Match(s string) bool {
	return p.full.MatchString(s)
}

// Generate returns a string that fully matches the pattern and, when possible,
// whose length lies within b. If the bounds cannot be met the returned value still
// matches the pattern and the error is ErrBoundsWidened. If no matching string is
// found at all, the literal prefix of the pattern is returned with
// apperr.ErrUnsupportedPattern.
func (p *Pattern) Generate(rng *rand.Rand, b Bounds) (string, error) {
	g := walker{rng: rng, cap: p.cap}
	if b.Min > g.cap {
		g.cap = b.Min
	}

	var fallback string
	found, bestMiss := false, 0
	for attempt := 0; attempt < maxAttempts; attempt++ {
		s, ok := g.emit(p.ast)
		if !ok || !p.full.MatchString(s) {
			g.bias = biasNone
			continue
		}
		n, miss := utf8.RuneCountInString(s), 0
		switch {
		case n < b.Min:
			g.bias, miss = biasHigh, b.Min-n
		case b.Max != Unbounded && n > b.Max:
			g.bias, miss = biasLow, n-b.Max
		default:
			return s, nil
		}
		if !found || miss < bestMiss {
			fallback, found, bestMiss = s, true, miss
		}
		// Alternate between uniform and biased draws so alternation branches keep varying.
		if attempt%3 == 2 {
			g.bias = biasNone
		}
	}
	if found {
		return fallback, ErrBoundsWidened
	}
	return LiteralPrefix(p.source), fmt.Errorf("%w: %q: no matching candidate", apperr.ErrUnsupportedPattern, p.source)
}

// LiteralPrefix returns the leading literal text of a pattern, skipping a leading
// anchor: "^urn:(?=x)" -> "urn:". It works on unparseable patterns too.
func LiteralPrefix(pattern string) string {
	s := strings.TrimPrefix(pattern, "^")
	var b strings.Builder
	last, i := 0, 0
	for i < len(s) {
		c := s[i]
		if c == '\\' && i+1 < len(s) && strings.IndexByte(`.-/\:+*?()[]{}|^$`, s[i+1]) >= 0 {
			last = b.Len()
			b.WriteByte(s[i+1])
			i += 2
			continue
		}
		if strings.IndexByte(`\.[](){}*+?|^$`, c) >= 0 {
			break
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		last = b.Len()
		b.WriteString(s[i : i+size])
		i += size
	}
	out := b.String()
	// A quantifier applies to the last literal, so that rune is not fixed.
	if i < len(s) && strings.IndexByte("*+?{", s[i]) >= 0 {
		out = out[:last]
	}
	return out
}
