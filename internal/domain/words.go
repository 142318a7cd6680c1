package domain

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

var (
	givenNames = []string{
		"Ana", "Beatriz", "Bruno", "Camila", "Carlos", "Daniela", "Eduardo", "Fernanda",
		"Gabriel", "Helena", "Igor", "Julia", "Leonardo", "Mariana", "Paulo", "Rafaela",
	}
	familyNames = []string{
		"Almeida", "Barbosa", "Cardoso", "Costa", "Ferreira", "Gomes", "Lima", "Martins",
		"Oliveira", "Pereira", "Ribeiro", "Rodrigues", "Santos", "Silva", "Souza",
	}
	cities = []string{
		"Belo Horizonte", "Brasilia", "Curitiba", "Florianopolis", "Fortaleza", "Goiania",
		"Manaus", "Porto Alegre", "Recife", "Rio de Janeiro", "Salvador", "Sao Paulo",
	}
	// UF codes.
	states = []string{
		"AC", "AL", "AP", "AM", "BA", "CE", "DF", "ES", "GO", "MA", "MT", "MS", "MG", "PA",
		"PB", "PR", "PE", "PI", "RJ", "RN", "RS", "RO", "RR", "SC", "SP", "SE", "TO",
	}
	streetKinds = []string{"Rua", "Avenida", "Travessa", "Alameda"}
	nouns       = []string{
		"conta", "pagamento", "consentimento", "cartao", "tarifa", "limite", "saldo",
		"contrato", "parcela", "transferencia", "investimento", "emprestimo",
	}
	adjectives = []string{
		"mensal", "corrente", "principal", "digital", "pendente", "ativo", "automatico",
	}
)

// Country is the ISO 3166-1 alpha-3 code used for generated addresses.
const Country = "BRA"

func pick(rng *rand.Rand, words []string) string {
	return words[rng.IntN(len(words))]
}

// PersonName returns a given name followed by a family name.
func PersonName(rng *rand.Rand) string {
	return pick(rng, givenNames) + " " + pick(rng, familyNames)
}

// City returns a Brazilian city name without accents.
func City(rng *rand.Rand) string {
	return pick(rng, cities)
}

// State returns a two-letter federative unit code.
func State(rng *rand.Rand) string {
	return pick(rng, states)
}

// Address returns a street address line.
func Address(rng *rand.Rand) string {
	return fmt.Sprintf("%s %s, %d", pick(rng, streetKinds), pick(rng, familyNames), 1+rng.IntN(2000))
}

// Description returns a short Portuguese phrase.
func Description(rng *rand.Rand) string {
	n := 2 + rng.IntN(3)
	words := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		words = append(words, pick(rng, nouns))
	}
	words = append(words, pick(rng, adjectives))
	s := strings.Join(words, " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

// Email returns a lowercase address in the example.com domain.
func Email(rng *rand.Rand) string {
	return fmt.Sprintf("%s.%s%d@example.com",
		strings.ToLower(pick(rng, givenNames)),
		strings.ToLower(pick(rng, familyNames)),
		rng.IntN(100))
}
