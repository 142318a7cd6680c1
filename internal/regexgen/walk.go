package regexgen

import (
	"math/rand/v2"
	"regexp/syntax"
	"strings"
)

type bias uint8

const (
	biasNone bias = iota
	biasLow
	biasHigh
)

const (
	printableLo = 0x20
	printableHi = 0x7e

	surrogateLo = 0xd800
	surrogateHi = 0xdfff
)

type walker struct {
	rng  *rand.Rand
	cap  int
	bias bias
}

func (w *walker) emit(re *syntax.Regexp) (string, bool) {
	var b strings.Builder
	ok := w.write(&b, re)
	return b.String(), ok
}

func (w *walker) write(b *strings.Builder, re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpNoMatch:
		return false
	case syntax.OpEmptyMatch,
		syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return true
	case syntax.OpLiteral:
		for _, r := range re.Rune {
			b.WriteRune(r)
		}
		return true
	case syntax.OpCharClass:
		r, ok := w.pickClass(re.Rune)
		if !ok {
			return false
		}
		b.WriteRune(r)
		return true
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		b.WriteRune(rune(printableLo + w.rng.IntN(printableHi-printableLo+1)))
		return true
	case syntax.OpCapture:
		return w.write(b, re.Sub[0])
	case syntax.OpStar:
		return w.repeat(b, re.Sub[0], 0, -1)
	case syntax.OpPlus:
		return w.repeat(b, re.Sub[0], 1, -1)
	case syntax.OpQuest:
		return w.repeat(b, re.Sub[0], 0, 1)
	case syntax.OpRepeat:
		return w.repeat(b, re.Sub[0], re.Min, re.Max)
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if !w.write(b, sub) {
				return false
			}
		}
		return true
	case syntax.OpAlternate:
		return w.write(b, re.Sub[w.rng.IntN(len(re.Sub))])
	}
	return false
}

// repeat writes sub between min and max times; max < 0 means min + cap.
func (w *walker) repeat(b *strings.Builder, sub *syntax.Regexp, min, max int) bool {
	if max < 0 {
		max = min + w.cap
	}
	for i, n := 0, w.count(min, max); i < n; i++ {
		if !w.write(b, sub) {
			return false
		}
	}
	return true
}

func (w *walker) count(min, max int) int {
	if max <= min {
		return min
	}
	switch w.bias {
	case biasHigh:
		if w.rng.IntN(2) == 0 {
			return max
		}
		lo := min + (max-min+1)/2
		return lo + w.rng.IntN(max-lo+1)
	case biasLow:
		if w.rng.IntN(2) == 0 {
			return min
		}
		hi := min + (max-min)/2
		return min + w.rng.IntN(hi-min+1)
	default:
		return min + w.rng.IntN(max-min+1)
	}
}

// pickClass draws a rune from the class ranges (lo, hi pairs), preferring
// printable ASCII and never returning a surrogate.
func (w *walker) pickClass(ranges []rune) (rune, bool) {
	if r, ok := w.pickWeighted(clip(ranges, printableLo, printableHi)); ok {
		return r, true
	}
	return w.pickWeighted(withoutSurrogates(ranges))
}

func (w *walker) pickWeighted(ranges []rune) (rune, bool) {
	total := 0
	for i := 0; i+1 < len(ranges); i += 2 {
		total += int(ranges[i+1]-ranges[i]) + 1
	}
	if total == 0 {
		return 0, false
	}
	n := w.rng.IntN(total)
	for i := 0; i+1 < len(ranges); i += 2 {
		size := int(ranges[i+1]-ranges[i]) + 1
		if n < size {
			return ranges[i] + rune(n), true
		}
		n -= size
	}
	return 0, false
}

func clip(ranges []rune, lo, hi rune) []rune {
	var out []rune
	for i := 0; i+1 < len(ranges); i += 2 {
		a, b := max(ranges[i], lo), min(ranges[i+1], hi)
		if a <= b {
			out = append(out, a, b)
		}
	}
	return out
}

func withoutSurrogates(ranges []rune) []rune {
	var out []rune
	for i := 0; i+1 < len(ranges); i += 2 {
		a, b := ranges[i], ranges[i+1]
		if b < surrogateLo || a > surrogateHi {
			out = append(out, a, b)
			continue
		}
		if a < surrogateLo {
			out = append(out, a, surrogateLo-1)
		}
		if b > surrogateHi {
			out = append(out, surrogateHi+1, b)
		}
	}
	return out
}
