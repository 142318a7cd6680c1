package regexgen

import (
	"errors"
	"math/rand/v2"
	"regexp"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ofmock/internal/apperr"
)

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 42))
}

var corpus = []string{
	`^\d{11}$`,
	`^\d{14}$`,
	`^\d{11}$|^\d{14}$`,
	`^\d{5}-\d{3}$`,
	`^[A-Z]{3}$`,
	`^(AVAILABLE|UNAVAILABLE|PENDING)$`,
	`^urn:[a-zA-Z0-9][a-zA-Z0-9-]{0,31}:[a-zA-Z0-9()+,\-.:=@;$_!*'%\/?#]+$`,
	`^[a-zA-Z0-9][a-zA-Z0-9-]{0,99}$`,
	`^-?\d{1,15}\.\d{2,4}$`,
	`^(\d{4})-(1[0-2]|0?[1-9])-(3[01]|[12][0-9]|0?[1-9])$`,
	`^[^\s]{3,8}$`,
	`^[^a-z]+$`,
	`a.b.c`,
	`(ab)*c+d?`,
	`x{2,}y`,
	`\bword\b`,
	`^(?i)abc$`,
	`^\w+@\w+\.com$`,
	`^[\p{L}]{2,4}$`,
	`^((a|b)(c|d)){2,3}$`,
}

func TestGenerate_Corpus(t *testing.T) {
	rng := testRand(1)
	for _, src := range corpus {
		t.Run(src, func(t *testing.T) {
			p, err := Compile(src, DefaultRepetitionCap)
			require.NoError(t, err)
			re := regexp.MustCompile(`^(?:` + src + `)$`)
			for i := 0; i < 200; i++ {
				s, err := p.Generate(rng, Bounds{Max: Unbounded})
				require.NoError(t, err)
				require.True(t, re.MatchString(s), "%q does not match %s", s, src)
			}
		})
	}
}

func TestGenerate_LengthBounds(t *testing.T) {
	p, err := Compile(`^[a-z]+$`, DefaultRepetitionCap)
	require.NoError(t, err)

	rng := testRand(2)
	for i := 0; i < 100; i++ {
		s, err := p.Generate(rng, Bounds{Min: 25, Max: 30})
		require.NoError(t, err)
		n := utf8.RuneCountInString(s)
		assert.GreaterOrEqual(t, n, 25)
		assert.LessOrEqual(t, n, 30)
	}

	for i := 0; i < 100; i++ {
		s, err := p.Generate(rng, Bounds{Min: 1, Max: 2})
		require.NoError(t, err)
		assert.LessOrEqual(t, utf8.RuneCountInString(s), 2)
	}
}

func TestGenerate_IncompatibleBoundsWiden(t *testing.T) {
	p, err := Compile(`^\d{11}$`, DefaultRepetitionCap)
	require.NoError(t, err)

	s, err := p.Generate(testRand(3), Bounds{Min: 1, Max: 5})
	assert.ErrorIs(t, err, ErrBoundsWidened)
	assert.Regexp(t, `^\d{11}$`, s)
}

func TestCompile_Unsupported(t *testing.T) {
	for _, src := range []string{`^(a)\1$`, `^urn:(?=x)`, `^(?!abc)`, `(?<=a)b`} {
		_, err := Compile(src, 0)
		require.Error(t, err, src)
		assert.True(t, errors.Is(err, apperr.ErrUnsupportedPattern), src)
	}
}

func TestLiteralPrefix(t *testing.T) {
	tests := map[string]string{
		`^urn:(?=x)`:   "urn:",
		`abc\d+`:       "abc",
		`^BR\-[0-9]`:   "BR-",
		`^ab*c`:        "a",
		`(?!x)`:        "",
		`^prefix(a)\1`: "prefix",
	}
	for src, want := range tests {
		assert.Equal(t, want, LiteralPrefix(src), src)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	p, err := Compile(`^[A-Z]{2}\d{4}(X|Y)$`, 0)
	require.NoError(t, err)
	a, err := p.Generate(testRand(7), Bounds{Max: Unbounded})
	require.NoError(t, err)
	b, err := p.Generate(testRand(7), Bounds{Max: Unbounded})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerate_RepetitionCap(t *testing.T) {
	p, err := Compile(`^a*$`, 3)
	require.NoError(t, err)
	rng := testRand(8)
	for i := 0; i < 100; i++ {
		s, err := p.Generate(rng, Bounds{Max: Unbounded})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(s), 3)
	}
}

func TestCache(t *testing.T) {
	c := NewCache(0)
	p1, err := c.Get(`^\d+$`)
	require.NoError(t, err)
	p2, err := c.Get(`^\d+$`)
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	_, err = c.Get(`(?=x)`)
	assert.ErrorIs(t, err, apperr.ErrUnsupportedPattern)
}
