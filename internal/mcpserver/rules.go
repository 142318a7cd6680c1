package mcpserver

// GenerationRules describes how field values are produced, for LLM consumers
// deciding which constraints to put in a contract.
const GenerationRules = `# ofmock Generation Rules

Each field value is resolved in this order; the first applicable rule wins.

1. **Enum.** A declared ` + "`" + `enum` + "`" + ` picks one of its members.
2. **Example.** When enabled, a declared ` + "`" + `example` + "`" + `, then an entry of the contract category's data dictionary, is used if it satisfies every constraint of the field (kind, length, bounds, pattern, format, and the checksum or layout of CPF, CNPJ, phone and CEP fields).
3. **Document category.** Fields whose names denote a Brazilian document or
   address component (CPF, CNPJ, phone, CEP) get a valid domain value.
   CPF and CNPJ values carry correct check digits.
4. **Identifier category.** Consent, customer, account and similar ids get a
   domain value unless it does not match the declared pattern.
5. **Pattern.** A ` + "`" + `pattern` + "`" + ` yields a string that fully matches it.
6. **Format and type.** ` + "`" + `uuid` + "`" + `, ` + "`" + `date` + "`" + `, ` + "`" + `date-time` + "`" + `, ` + "`" + `email` + "`" + `, ` + "`" + `uri` + "`" + ` and friends;
   otherwise strings honour minLength/maxLength, numbers honour
   minimum/maximum (exclusive bounds included), arrays honour minItems/maxItems.

Conditions that cannot be satisfied are reported as warnings next to a
best-effort value; generation never fails on a single field.

## Supported pattern subset

Patterns use RE2 syntax: literals, character classes and ranges, ` + "`" + `\d \w \s` + "`" + `,
the dot, alternation, groups and the quantifiers ` + "`" + `* + ? {n} {n,} {n,m}` + "`" + `.
Unbounded repetition is capped. Anchors and word boundaries emit nothing.
Lookaround and backreferences are not supported and produce a warning.

## Correlation

Records registered in the store are linked by correlation rules
(` + "`" + `get_correlation_graph` + "`" + `). ` + "`" + `build_correlated_tree` + "`" + ` generates linked
records whose key fields agree, deterministically for a given seed value.
`
