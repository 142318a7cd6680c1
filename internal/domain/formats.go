package domain

import (
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

// ConsentURNPrefix prefixes generated consent identifiers.
const ConsentURNPrefix = "urn:bancoex:"

// Phone returns a Brazilian mobile number: +55, a two-digit area code
// (11..99), a leading 9 and eight more digits.
func Phone(rng *rand.Rand) string {
	area := 11 + rng.IntN(89)
	return fmt.Sprintf("+55%02d9%08d", area, rng.IntN(100_000_000))
}

// PostalCode returns a CEP in the #####-### layout.
func PostalCode(rng *rand.Rand) string {
	return fmt.Sprintf("%05d-%03d", rng.IntN(100_000), rng.IntN(1_000))
}

// ValidPhone reports whether s is a Brazilian mobile number in the layout
// Phone produces. The +55 prefix is optional and punctuation is ignored.
func ValidPhone(s string) bool {
	d := strings.NewReplacer("+", "", "(", "", ")", "", "-", "", " ", "", ".", "").Replace(s)
	if len(d) == 13 && strings.HasPrefix(d, "55") {
		d = d[2:]
	}
	if len(d) != 11 || !allDigits(d) {
		return false
	}
	area := int(d[0]-'0')*10 + int(d[1]-'0')
	return area >= 11 && d[2] == '9'
}

// ValidPostalCode reports whether s is a CEP, with or without the hyphen.
func ValidPostalCode(s string) bool {
	if len(s) == 9 && s[5] == '-' {
		s = s[:5] + s[6:]
	}
	return len(s) == 8 && allDigits(s)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// UUID returns a version 4 UUID drawn from rng.
func UUID(rng *rand.Rand) string {
	id, err := uuid.NewRandomFromReader(Reader(rng))
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ConsentID returns a consent URN.
func ConsentID(rng *rand.Rand) string {
	return ConsentURNPrefix + UUID(rng)
}

// Reader adapts rng to io.Reader.
func Reader(rng *rand.Rand) io.Reader {
	return rngReader{rng: rng}
}

type rngReader struct {
	rng *rand.Rand
}

func (r rngReader) Read(p []byte) (int, error) {
	for i := 0; i < len(p); i += 8 {
		v := r.rng.Uint64()
		for j := 0; j < 8 && i+j < len(p); j++ {
			p[i+j] = byte(v >> (8 * j))
		}
	}
	return len(p), nil
}
