// Package domain generates Brazilian identifiers and formats, including their
// check-digit rules.
package domain

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

var (
	cpfFirstWeights  = []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	cpfSecondWeights = []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}

	cnpjFirstWeights  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjSecondWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// headquartersBranch is the branch number of a company's head office.
const headquartersBranch = "0001"

// CPF returns an 11-digit individual taxpayer number with valid check digits.
func CPF(rng *rand.Rand) string {
	digits := randomDigits(rng, 9)
	d1, d2 := checkDigits(digits, cpfFirstWeights, cpfSecondWeights)
	return joinDigits(append(digits, d1, d2))
}

// CNPJ returns a 14-digit company number for a head office with valid check digits.
func CNPJ(rng *rand.Rand) string {
	digits := randomDigits(rng, 8)
	for _, r := range headquartersBranch {
		digits = append(digits, int(r-'0'))
	}
	d1, d2 := checkDigits(digits, cnpjFirstWeights, cnpjSecondWeights)
	return joinDigits(append(digits, d1, d2))
}

// CPFCheckDigits computes the two check digits for the first nine CPF digits.
func CPFCheckDigits(base string) (int, int, bool) {
	digits, ok := parseDigits(base, 9)
	if !ok {
		return 0, 0, false
	}
	d1, d2 := checkDigits(digits, cpfFirstWeights, cpfSecondWeights)
	return d1, d2, true
}

// CNPJCheckDigits computes the two check digits for the first twelve CNPJ digits.
func CNPJCheckDigits(base string) (int, int, bool) {
	digits, ok := parseDigits(base, 12)
	if !ok {
		return 0, 0, false
	}
	d1, d2 := checkDigits(digits, cnpjFirstWeights, cnpjSecondWeights)
	return d1, d2, true
}

// ValidCPF reports whether s is an 11-digit CPF with correct check digits.
// Punctuation ("123.456.789-09") is ignored.
func ValidCPF(s string) bool {
	return validDocument(stripPunctuation(s), 11, CPFCheckDigits)
}

// ValidCNPJ reports whether s is a 14-digit CNPJ with correct check digits.
func ValidCNPJ(s string) bool {
	return validDocument(stripPunctuation(s), 14, CNPJCheckDigits)
}

func validDocument(s string, size int, compute func(string) (int, int, bool)) bool {
	if len(s) != size {
		return false
	}
	d1, d2, ok := compute(s[:size-2])
	if !ok {
		return false
	}
	return int(s[size-2]-'0') == d1 && int(s[size-1]-'0') == d2
}

// checkDigits applies the mod-11 rule: remainder below 2 yields 0, otherwise 11 minus remainder.
func checkDigits(digits, first, second []int) (int, int) {
	d1 := mod11(digits, first)
	d2 := mod11(append(append([]int(nil), digits...), d1), second)
	return d1, d2
}

func mod11(digits, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += digits[i] * w
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func randomDigits(rng *rand.Rand, n int) []int {
	out := make([]int, n, n+2)
	for i := range out {
		out[i] = rng.IntN(10)
	}
	return out
}

func joinDigits(digits []int) string {
	var b strings.Builder
	b.Grow(len(digits))
	for _, d := range digits {
		b.WriteString(strconv.Itoa(d))
	}
	return b.String()
}

func parseDigits(s string, n int) ([]int, bool) {
	if len(s) != n {
		return nil, false
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return nil, false
		}
		out[i] = int(c - '0')
	}
	return out, true
}

func stripPunctuation(s string) string {
	return strings.NewReplacer(".", "", "-", "", "/", "", " ", "").Replace(s)
}
