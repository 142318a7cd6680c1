package schema

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var inflections = newInflections()

func newInflections() *inflect.Ruleset {
	rs := inflect.NewDefaultRuleset()
	for _, acronym := range []string{"CNPJ", "CPF", "CEP", "UF", "URN", "ID"} {
		rs.AddAcronym(acronym)
	}
	return rs
}

type categoryTerm struct {
	category Category
	words    []string
}

// Order matters: the first matching term wins, so composite names such as
// "cpfCnpj" resolve to the earlier category.
var categoryTerms = buildTerms([]struct {
	category Category
	terms    []string
}{
	{CategoryCPF, []string{"cpf"}},
	{CategoryCNPJ, []string{"cnpj"}},
	{CategoryConsentID, []string{"consent id"}},
	{CategoryResourceID, []string{"credit card account id", "account id", "customer id", "resource id"}},
	{CategoryPhone, []string{"phone", "telephone", "telefone", "celular", "mobile phone"}},
	{CategoryPostalCode, []string{"cep", "postal code", "post code", "zip code"}},
	{CategoryEmail, []string{"email", "e mail"}},
	{CategoryState, []string{"country sub division", "state", "uf", "estado"}},
	{CategoryCountry, []string{"country", "pais"}},
	{CategoryCity, []string{"city", "town", "cidade", "municipio"}},
	{CategoryAddress, []string{"address", "endereco", "logradouro"}},
	{CategoryDescription, []string{"description", "descricao"}},
	{CategoryPersonName, []string{"name", "nome"}},
})

func buildTerms(groups []struct {
	category Category
	terms    []string
}) []categoryTerm {
	var out []categoryTerm
	for _, g := range groups {
		for _, t := range g.terms {
			out = append(out, categoryTerm{category: g.category, words: strings.Fields(t)})
		}
	}
	return out
}

// matches compares domain terms as substrings of the joined name, except
// three-letter terms ("cep", "cpf") which must be whole tokens. Hints always
// require whole tokens.
func (t categoryTerm) matches(tokens []string, joined string) bool {
	if t.category.Hint() {
		return containsRun(tokens, t.words)
	}
	term := strings.Join(t.words, "")
	if len(term) <= 3 {
		return containsRun(tokens, t.words)
	}
	return strings.Contains(joined, term)
}

// Classify resolves the domain category of a field from its declared format and
// its name, case- and accent-insensitively. "exceptionCode" is not a CEP.
func Classify(name string, format Format) Category {
	switch format {
	case FormatCPF:
		return CategoryCPF
	case FormatCNPJ:
		return CategoryCNPJ
	case FormatPhone:
		return CategoryPhone
	case FormatCEP:
		return CategoryPostalCode
	}

	tokens := Tokens(name)
	joined := strings.Join(tokens, "")
	for _, term := range categoryTerms {
		if term.matches(tokens, joined) {
			if term.category == CategoryEmail && format != FormatNone && format != FormatEmail {
				continue
			}
			return term.category
		}
	}
	if format == FormatEmail {
		return CategoryEmail
	}
	return CategoryNone
}

// Tokens splits a field name into lowercase, accent-free words:
// "númeroCPF" -> [numero cpf], "credit_card_accountId" -> [credit card account id].
func Tokens(name string) []string {
	s := foldAccents(name)
	if s == strings.ToUpper(s) {
		s = strings.ToLower(s)
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)

	var out []string
	for _, w := range strings.Split(inflections.Underscore(s), "_") {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func containsRun(tokens, words []string) bool {
	if len(words) == 0 || len(words) > len(tokens) {
		return false
	}
	for i := 0; i+len(words) <= len(tokens); i++ {
		match := true
		for j, w := range words {
			if !sameWord(tokens[i+j], w) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func sameWord(token, word string) bool {
	return token == word || inflections.Singularize(token) == word
}
