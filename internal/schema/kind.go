package schema

import "strings"

// Kind is the JSON type of a field.
type Kind uint8

const (
	KindString Kind = iota
	KindInteger
	KindNumber
	KindBoolean
	KindArray
	KindObject
)

var kindNames = [...]string{
	KindString:  "string",
	KindInteger: "integer",
	KindNumber:  "number",
	KindBoolean: "boolean",
	KindArray:   "array",
	KindObject:  "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind maps an OpenAPI type name to a Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return KindString, false
}

// Format is the closed set of string formats the generator knows how to produce.
// Anything else is carried as FormatOther with the raw name kept on the field.
type Format uint8

const (
	FormatNone Format = iota
	FormatDate
	FormatDateTime
	FormatEmail
	FormatUUID
	FormatURI
	FormatCPF
	FormatCNPJ
	FormatPhone
	FormatCEP
	FormatOther
)

var formatNames = [...]string{
	FormatNone:     "",
	FormatDate:     "date",
	FormatDateTime: "date-time",
	FormatEmail:    "email",
	FormatUUID:     "uuid",
	FormatURI:      "uri",
	FormatCPF:      "cpf",
	FormatCNPJ:     "cnpj",
	FormatPhone:    "phone",
	FormatCEP:      "cep",
	FormatOther:    "other",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "other"
}

// ParseFormat maps an OpenAPI format name to a Format. Unknown names yield FormatOther.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return FormatNone
	case "date":
		return FormatDate
	case "date-time", "datetime":
		return FormatDateTime
	case "email":
		return FormatEmail
	case "uuid":
		return FormatUUID
	case "uri", "url":
		return FormatURI
	case "cpf":
		return FormatCPF
	case "cnpj":
		return FormatCNPJ
	case "phone", "telephone":
		return FormatPhone
	case "cep":
		return FormatCEP
	default:
		return FormatOther
	}
}

// Category is the domain meaning inferred for a field.
type Category uint8

const (
	CategoryNone Category = iota

	// Strong categories override patterns: the domain generator output is used verbatim.
	CategoryCPF
	CategoryCNPJ
	CategoryPhone
	CategoryPostalCode

	// Identifier categories are used when they also satisfy the field's pattern.
	CategoryConsentID
	CategoryResourceID

	// Hints only shape unconstrained strings.
	CategoryPersonName
	CategoryCity
	CategoryState
	CategoryCountry
	CategoryAddress
	CategoryDescription
	CategoryEmail
)

var categoryNames = [...]string{
	CategoryNone:        "none",
	CategoryCPF:         "cpf",
	CategoryCNPJ:        "cnpj",
	CategoryPhone:       "phone",
	CategoryPostalCode:  "postal-code",
	CategoryConsentID:   "consent-id",
	CategoryResourceID:  "resource-id",
	CategoryPersonName:  "person-name",
	CategoryCity:        "city",
	CategoryState:       "state",
	CategoryCountry:     "country",
	CategoryAddress:     "address",
	CategoryDescription: "description",
	CategoryEmail:       "email",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "none"
}

// Strong reports whether the category takes precedence over a declared pattern.
func (c Category) Strong() bool {
	return c >= CategoryCPF && c <= CategoryPostalCode
}

// Identifier reports whether the category names a correlation identifier.
func (c Category) Identifier() bool {
	return c == CategoryConsentID || c == CategoryResourceID
}

// Hint reports whether the category only shapes plain strings.
func (c Category) Hint() bool {
	return c >= CategoryPersonName
}
