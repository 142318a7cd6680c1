package generator

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/starford/ofmock/internal/apperr"
	"github.com/starford/ofmock/internal/domain"
	"github.com/starford/ofmock/internal/regexgen"
	"github.com/starford/ofmock/internal/schema"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generate produces one value for field. A nil result means the field's
// constraints could not be satisfied; a diagnostic explains why.
func (s *Session) Generate(f *schema.Field, fc FieldContext) any {
	if fc.FieldName == "" {
		fc.FieldName = f.Name
	}
	if fc.Contract == "" {
		fc.Contract = s.contract
	}
	category := fc.Category
	if category == schema.CategoryNone {
		category = f.Category
	}

	if len(f.Enum) > 0 {
		return f.Enum[s.rng.IntN(len(f.Enum))]
	}

	if v, ok := s.example(f, fc, category); ok {
		return v
	}

	if f.Kind == schema.KindString {
		if category.Strong() {
			return s.domainValue(category)
		}
		if category.Identifier() {
			v := s.domainValue(category)
			if f.Pattern == "" || s.matches(f.Pattern, v) {
				return v
			}
		}
		if f.Pattern != "" {
			return s.patternValue(f, fc)
		}
	}

	switch f.Kind {
	case schema.KindString:
		return s.stringValue(f, fc, category)
	case schema.KindInteger:
		return s.integerValue(f, fc)
	case schema.KindNumber:
		return s.numberValue(f, fc)
	case schema.KindBoolean:
		return s.rng.IntN(2) == 0
	case schema.KindArray:
		return s.arrayValue(f, fc)
	case schema.KindObject:
		if f.Object == nil {
			return map[string]any{}
		}
		return s.Object(f.Object, fc.Path)
	}
	return nil
}

// example returns an acceptable candidate from the configured lookups. Within
// one lookup the scan starts at a random candidate.
func (s *Session) example(f *schema.Field, fc FieldContext, category schema.Category) (any, bool) {
	for _, l := range s.g.examples {
		candidates := l.EnumOrExample(f, fc)
		if len(candidates) == 0 {
			continue
		}
		start := s.rng.IntN(len(candidates))
		for i := range candidates {
			v := candidates[(start+i)%len(candidates)]
			if s.acceptable(f, category, v) {
				return v, true
			}
		}
	}
	return nil, false
}

// acceptable reports whether v satisfies every constraint the generator itself
// honors for f: kind, length, bounds, items, pattern, format and the checksum
// or layout of strong categories.
func (s *Session) acceptable(f *schema.Field, category schema.Category, v any) bool {
	switch f.Kind {
	case schema.KindString:
		str, ok := v.(string)
		return ok && s.acceptableString(f, category, str)
	case schema.KindInteger:
		n, ok := toFloat(v)
		return ok && n == math.Trunc(n) && inBounds(f, n)
	case schema.KindNumber:
		n, ok := toFloat(v)
		return ok && inBounds(f, n)
	case schema.KindBoolean:
		_, ok := v.(bool)
		return ok
	case schema.KindArray:
		items, ok := v.([]any)
		if !ok {
			return false
		}
		if (f.MinItems != nil && len(items) < *f.MinItems) || (f.MaxItems != nil && len(items) > *f.MaxItems) {
			return false
		}
		if f.Items == nil {
			return true
		}
		for _, item := range items {
			if !s.acceptable(f.Items, f.Items.Category, item) {
				return false
			}
		}
		return true
	case schema.KindObject:
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

func (s *Session) acceptableString(f *schema.Field, category schema.Category, v string) bool {
	n := utf8.RuneCountInString(v)
	if (f.MinLength != nil && n < *f.MinLength) || (f.MaxLength != nil && n > *f.MaxLength) {
		return false
	}
	if f.Pattern != "" && !s.matches(f.Pattern, v) {
		return false
	}
	switch category {
	case schema.CategoryCPF:
		return domain.ValidCPF(v)
	case schema.CategoryCNPJ:
		return domain.ValidCNPJ(v)
	case schema.CategoryPhone:
		return domain.ValidPhone(v)
	case schema.CategoryPostalCode:
		return domain.ValidPostalCode(v)
	}
	var err error
	switch f.Format {
	case schema.FormatUUID:
		_, err = uuid.Parse(v)
	case schema.FormatDate:
		_, err = time.Parse(time.DateOnly, v)
	case schema.FormatDateTime:
		_, err = time.Parse(time.RFC3339, v)
	}
	return err == nil
}

func inBounds(f *schema.Field, n float64) bool {
	if f.Minimum != nil && (n < *f.Minimum || (f.ExclusiveMinimum && n == *f.Minimum)) {
		return false
	}
	if f.Maximum != nil && (n > *f.Maximum || (f.ExclusiveMaximum && n == *f.Maximum)) {
		return false
	}
	return true
}

// toFloat accepts the numeric types produced by the YAML and JSON decoders.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	}
	return 0, false
}

func (s *Session) matches(pattern, v string) bool {
	p, err := s.g.patterns.Get(pattern)
	return err == nil && p.Match(v)
}

func (s *Session) domainValue(c schema.Category) string {
	switch c {
	case schema.CategoryCPF:
		return domain.CPF(s.rng)
	case schema.CategoryCNPJ:
		return domain.CNPJ(s.rng)
	case schema.CategoryPhone:
		return domain.Phone(s.rng)
	case schema.CategoryPostalCode:
		return domain.PostalCode(s.rng)
	case schema.CategoryConsentID:
		return domain.ConsentID(s.rng)
	case schema.CategoryResourceID:
		return domain.UUID(s.rng)
	}
	return ""
}

func (s *Session) hintValue(c schema.Category) (string, bool) {
	switch c {
	case schema.CategoryPersonName:
		return domain.PersonName(s.rng), true
	case schema.CategoryCity:
		return domain.City(s.rng), true
	case schema.CategoryState:
		return domain.State(s.rng), true
	case schema.CategoryCountry:
		return domain.Country, true
	case schema.CategoryAddress:
		return domain.Address(s.rng), true
	case schema.CategoryDescription:
		return domain.Description(s.rng), true
	case schema.CategoryEmail:
		return domain.Email(s.rng), true
	}
	return "", false
}

// lengthBounds resolves minLength/maxLength. ok is false when they conflict.
func lengthBounds(f *schema.Field, defMin, defMax int) (lo, hi int, ok bool) {
	lo, hi = defMin, defMax
	if f.MinLength != nil {
		lo = *f.MinLength
	}
	if f.MaxLength != nil {
		hi = *f.MaxLength
	}
	if f.MinLength != nil && f.MaxLength != nil && lo > hi {
		return lo, hi, false
	}
	switch {
	case f.MaxLength == nil && lo > hi:
		hi = lo
	case f.MinLength == nil && hi < lo:
		lo = hi
	}
	return lo, hi, true
}

// incompatible records the conflict and yields a null value. The diagnostic is a
// warning when the field is required, since null is not a legal value there.
func (s *Session) incompatible(fc FieldContext, detail string) any {
	severity := SeverityInfo
	if fc.Required {
		severity = SeverityWarning
	}
	s.report(fc, severity, fmt.Errorf("%w: %s", apperr.ErrIncompatibleConstraints, detail))
	return nil
}

func (s *Session) patternValue(f *schema.Field, fc FieldContext) any {
	p, err := s.g.patterns.Get(f.Pattern)
	if err != nil {
		s.report(fc, SeverityWarning, err)
		return regexgen.LiteralPrefix(f.Pattern)
	}

	bounds := regexgen.Bounds{Max: regexgen.Unbounded}
	if f.MinLength != nil {
		bounds.Min = *f.MinLength
	}
	if f.MaxLength != nil {
		bounds.Max = *f.MaxLength
	}
	if f.MinLength != nil && f.MaxLength != nil && bounds.Min > bounds.Max {
		return s.incompatible(fc, fmt.Sprintf("minLength %d > maxLength %d", bounds.Min, bounds.Max))
	}

	v, err := p.Generate(s.rng, bounds)
	switch {
	case errors.Is(err, regexgen.ErrBoundsWidened):
		s.report(fc, SeverityInfo, err)
	case err != nil:
		s.report(fc, SeverityWarning, err)
	}
	return v
}

func (s *Session) stringValue(f *schema.Field, fc FieldContext, category schema.Category) any {
	switch f.Format {
	case schema.FormatUUID:
		return domain.UUID(s.rng)
	case schema.FormatEmail:
		return domain.Email(s.rng)
	case schema.FormatURI:
		return "https://example.com/" + strings.ToLower(s.randomString(4+s.rng.IntN(8)))
	case schema.FormatDate:
		return s.randomTime().Format(time.DateOnly)
	case schema.FormatDateTime:
		return s.randomTime().Format(time.RFC3339)
	}

	lo, hi, ok := lengthBounds(f, defaultMinLength, defaultMaxLength)
	if !ok {
		return s.incompatible(fc, fmt.Sprintf("minLength %d > maxLength %d", lo, hi))
	}
	if category.Hint() {
		if v, ok := s.hintValue(category); ok {
			if n := len([]rune(v)); n >= lo && n <= hi {
				return v
			}
		}
	}
	return s.randomString(lo + s.rng.IntN(hi-lo+1))
}

func (s *Session) randomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumeric[s.rng.IntN(len(alphanumeric))]
	}
	return string(b)
}

func (s *Session) randomTime() time.Time {
	offset := time.Duration(s.rng.Int64N(int64(dateWindow / time.Second))) * time.Second
	return s.g.reference.Add(-offset)
}

func (s *Session) integerValue(f *schema.Field, fc FieldContext) any {
	lo, hi := int64(0), int64(defaultIntRange)
	if f.Minimum != nil {
		if f.ExclusiveMinimum {
			lo = clampInt(math.Floor(*f.Minimum) + 1)
		} else {
			lo = clampInt(math.Ceil(*f.Minimum))
		}
	}
	if f.Maximum != nil {
		if f.ExclusiveMaximum {
			hi = clampInt(math.Ceil(*f.Maximum) - 1)
		} else {
			hi = clampInt(math.Floor(*f.Maximum))
		}
	}
	switch {
	case f.Minimum != nil && f.Maximum != nil:
		if lo > hi {
			return s.incompatible(fc, fmt.Sprintf("minimum %v > maximum %v", *f.Minimum, *f.Maximum))
		}
	case f.Minimum != nil && lo > hi:
		hi = math.MaxInt64
		if lo <= math.MaxInt64-defaultIntRange {
			hi = lo + defaultIntRange
		}
	case f.Maximum != nil && hi < lo:
		lo = math.MinInt64
		if hi >= math.MinInt64+defaultIntRange {
			lo = hi - defaultIntRange
		}
	}
	span := uint64(hi - lo)
	if span == math.MaxUint64 {
		return lo + int64(s.rng.Uint64()>>1)
	}
	return lo + int64(s.rng.Uint64N(span+1))
}

// clampInt converts a bound to int64, saturating outside the int64 range.
func clampInt(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	}
	return int64(v)
}

func (s *Session) numberValue(f *schema.Field, fc FieldContext) any {
	lo, hi := 0.0, float64(defaultIntRange)
	if f.Minimum != nil {
		lo = *f.Minimum
	}
	if f.Maximum != nil {
		hi = *f.Maximum
	}
	switch {
	case f.Minimum != nil && f.Maximum != nil:
		if lo > hi || (lo == hi && (f.ExclusiveMinimum || f.ExclusiveMaximum)) {
			return s.incompatible(fc, fmt.Sprintf("minimum %v > maximum %v", lo, hi))
		}
	case f.Minimum != nil && lo > hi:
		hi = lo + defaultIntRange
	case f.Maximum != nil && hi < lo:
		lo = hi - defaultIntRange
	}

	inRange := func(v float64) bool {
		if v < lo || v > hi {
			return false
		}
		if f.ExclusiveMinimum && v == lo {
			return false
		}
		if f.ExclusiveMaximum && v == hi {
			return false
		}
		return true
	}

	var v float64
	for attempt := 0; attempt < 8; attempt++ {
		v = lo + s.rng.Float64()*(hi-lo)
		if rounded := math.Round(v*100) / 100; inRange(rounded) {
			return rounded
		}
		if inRange(v) {
			return v
		}
	}
	return (lo + hi) / 2
}

func (s *Session) arrayValue(f *schema.Field, fc FieldContext) any {
	lo, hi := defaultMinItems, defaultMaxItems
	if f.MinItems != nil {
		lo = *f.MinItems
	}
	if f.MaxItems != nil {
		hi = *f.MaxItems
	}
	switch {
	case f.MinItems != nil && f.MaxItems != nil:
		if lo > hi {
			return s.incompatible(fc, fmt.Sprintf("minItems %d > maxItems %d", lo, hi))
		}
	case lo > hi && f.MaxItems == nil:
		hi = lo
	case lo > hi:
		lo = hi
	}

	n := lo + s.rng.IntN(hi-lo+1)
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.Generate(f.Items, FieldContext{
			Contract:   fc.Contract,
			FieldName:  f.Name,
			SchemaName: fc.SchemaName,
			Required:   true,
			Path:       fmt.Sprintf("%s[%d]", fc.Path, i),
		}))
	}
	return out
}
