// Package openapi turns OpenAPI 3 and Swagger 2 documents, in JSON or YAML, into
// validated schema.Contract values with every $ref resolved.
package openapi

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/ofmock/internal/apperr"
	"github.com/starford/ofmock/internal/schema"
)

// UnknownCategory is assigned when neither the source path nor the title names
// a known Open Finance category.
const UnknownCategory = "unknown"

// Categories lists the Open Finance Brasil API families recognised in file paths
// and contract titles.
var Categories = []string{
	"consents",
	"resources",
	"customers",
	"accounts",
	"credit-cards-accounts",
	"loans",
	"financings",
	"unarranged-accounts-overdraft",
	"invoice-financings",
	"bank-fixed-incomes",
	"credit-fixed-incomes",
	"variable-incomes",
	"treasure-titles",
	"funds",
	"exchanges",
	"acquiring-services",
	"automatic-payments",
	"capitalization-title",
	"pension",
}

// matchOrder holds Categories longest first so "credit-cards-accounts" wins over "accounts".
var matchOrder = func() []string {
	out := append([]string(nil), Categories...)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}()

var httpMethods = map[string]bool{"get": true, "post": true, "put": true, "delete": true, "patch": true}

const maxRefDepth = 32

// Parse decodes one contract document. source is the document's path relative to
// the contracts directory; it names the contract when the document has no title
// and takes part in category detection.
func Parse(source string, data []byte) (*schema.Contract, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrMalformedSchema, source, err)
	}
	root := deref(&doc)
	if root == nil || root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s: document is not a mapping", apperr.ErrMalformedSchema, source)
	}
	if !has(root, "openapi") && !has(root, "swagger") {
		return nil, fmt.Errorf("%w: %s: not an OpenAPI or Swagger document", apperr.ErrMalformedSchema, source)
	}

	l := &loader{root: root, objects: make(map[string]*schema.Object)}

	info := get(root, "info")
	name := strings.TrimSpace(str(info, "title"))
	if name == "" {
		name = strings.TrimSuffix(path.Base(source), path.Ext(source))
	}

	spec := schema.ContractSpec{
		Name:        name,
		Version:     str(info, "version"),
		Category:    DetectCategory(source, name),
		Description: str(info, "description"),
		BasePath:    l.basePath(),
		Source:      source,
		Schemas:     make(map[string]*schema.Object),
	}

	defsPointer, defs := l.definitions()
	for _, p := range pairs(defs) {
		if !isObjectSchema(p.value) {
			continue
		}
		obj, err := l.object(defsPointer+"/"+p.key, p.key, p.value, 0)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		spec.Schemas[p.key] = obj
	}

	spec.Endpoints = l.endpoints()

	return schema.NewContract(spec)
}

// DetectCategory returns the first known category contained in source or name.
func DetectCategory(source, name string) string {
	p := strings.ToLower(source)
	n := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(name, "_", " ")), "-"))
	for _, c := range matchOrder {
		if strings.Contains(p, c) || strings.Contains(n, c) {
			return c
		}
	}
	return UnknownCategory
}

type loader struct {
	root    *yaml.Node
	objects map[string]*schema.Object // by JSON pointer
}

func (l *loader) definitions() (string, *yaml.Node) {
	if s := get(get(l.root, "components"), "schemas"); s != nil {
		return "#/components/schemas", s
	}
	return "#/definitions", get(l.root, "definitions")
}

func (l *loader) basePath() string {
	if servers := items(get(l.root, "servers")); len(servers) > 0 {
		raw := str(servers[0], "url")
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return strings.TrimSuffix(u.Path, "/")
		}
		return strings.TrimSuffix(raw, "/")
	}
	return strings.TrimSuffix(str(l.root, "basePath"), "/")
}

// resolve looks a local JSON pointer up in the document.
func (l *loader) resolve(ref string) (*yaml.Node, error) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, fmt.Errorf("%w: external reference %q", apperr.ErrMalformedSchema, ref)
	}
	cur := l.root
	for _, seg := range strings.Split(ref[2:], "/") {
		cur = get(cur, unescapePointer(seg))
		if cur == nil {
			return nil, fmt.Errorf("%w: unresolved reference %q", apperr.ErrMalformedSchema, ref)
		}
	}
	return cur, nil
}

// object returns the object registered under pointer, building it on first use.
// The object is registered before its fields are filled so recursive references
// share one pointer.
func (l *loader) object(pointer, name string, n *yaml.Node, depth int) (*schema.Object, error) {
	if obj, ok := l.objects[pointer]; ok {
		return obj, nil
	}
	obj := &schema.Object{Name: name, Required: map[string]bool{}}
	l.objects[pointer] = obj
	if err := l.fill(obj, n, depth); err != nil {
		return nil, err
	}
	return obj, nil
}

// fill merges properties and required names of n, including allOf parts, into obj.
func (l *loader) fill(obj *schema.Object, n *yaml.Node, depth int) error {
	if depth > maxRefDepth {
		return fmt.Errorf("%w: %s: reference chain too deep", apperr.ErrMalformedSchema, obj.Name)
	}
	if ref := str(n, "$ref"); ref != "" {
		target, err := l.resolve(ref)
		if err != nil {
			return err
		}
		return l.fill(obj, target, depth+1)
	}
	for _, part := range items(get(n, "allOf")) {
		if err := l.fill(obj, part, depth+1); err != nil {
			return err
		}
	}
	for _, p := range pairs(get(n, "properties")) {
		f, err := l.field(p.key, p.value, depth+1)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", obj.Name, p.key, err)
		}
		replaced := false
		for i, existing := range obj.Fields {
			if existing.Name == p.key {
				obj.Fields[i] = f
				replaced = true
				break
			}
		}
		if !replaced {
			obj.Fields = append(obj.Fields, f)
		}
	}
	for _, r := range items(get(n, "required")) {
		obj.Required[r.Value] = true
	}
	return nil
}

// field builds one property.
func (l *loader) field(name string, n *yaml.Node, depth int) (*schema.Field, error) {
	if depth > maxRefDepth {
		return nil, fmt.Errorf("%w: %s: reference chain too deep", apperr.ErrMalformedSchema, name)
	}
	if n == nil {
		return nil, fmt.Errorf("%w: %s: empty schema", apperr.ErrMalformedSchema, name)
	}

	if ref := str(n, "$ref"); ref != "" {
		target, err := l.resolve(ref)
		if err != nil {
			return nil, err
		}
		var f *schema.Field
		if isObjectSchema(target) {
			obj, err := l.object(ref, refName(ref), target, depth+1)
			if err != nil {
				return nil, err
			}
			f = &schema.Field{Name: name, Kind: schema.KindObject, Object: obj}
			f.Description = str(target, "description")
		} else {
			f, err = l.field(name, target, depth+1)
			if err != nil {
				return nil, err
			}
		}
		overlay(f, n)
		return f, nil
	}

	if parts := items(get(n, "allOf")); len(parts) > 0 {
		if len(parts) == 1 && !has(n, "properties") {
			f, err := l.field(name, parts[0], depth+1)
			if err != nil {
				return nil, err
			}
			overlay(f, n)
			return f, nil
		}
		obj := &schema.Object{Name: name, Required: map[string]bool{}}
		if err := l.fill(obj, n, depth+1); err != nil {
			return nil, err
		}
		f := &schema.Field{Name: name, Kind: schema.KindObject, Object: obj}
		overlay(f, n)
		return f, nil
	}

	for _, key := range []string{"oneOf", "anyOf"} {
		for _, branch := range items(get(n, key)) {
			if str(branch, "type") == "null" {
				continue
			}
			f, err := l.field(name, branch, depth+1)
			if err != nil {
				return nil, err
			}
			overlay(f, n)
			if nullableBranch(get(n, key)) {
				f.Nullable = true
			}
			return f, nil
		}
	}

	kind, nullable := kindOf(n)
	f := &schema.Field{
		Name:        name,
		Kind:        kind,
		FormatName:  str(n, "format"),
		Pattern:     str(n, "pattern"),
		Description: str(n, "description"),
		MinLength:   integer(n, "minLength"),
		MaxLength:   integer(n, "maxLength"),
		Minimum:     number(n, "minimum"),
		Maximum:     number(n, "maximum"),
		MinItems:    integer(n, "minItems"),
		MaxItems:    integer(n, "maxItems"),
		Nullable:    nullable || boolean(n, "nullable"),
		Example:     example(n),
	}
	f.Format = schema.ParseFormat(f.FormatName)
	exclusiveBound(n, "exclusiveMinimum", &f.Minimum, &f.ExclusiveMinimum)
	exclusiveBound(n, "exclusiveMaximum", &f.Maximum, &f.ExclusiveMaximum)
	for _, e := range items(get(n, "enum")) {
		if v := value(e); v != nil {
			f.Enum = append(f.Enum, v)
		}
	}

	switch kind {
	case schema.KindArray:
		if it := get(n, "items"); it != nil {
			item, err := l.field(name, it, depth+1)
			if err != nil {
				return nil, err
			}
			f.Items = item
		}
	case schema.KindObject:
		obj := &schema.Object{Name: name, Required: map[string]bool{}}
		if err := l.fill(obj, n, depth+1); err != nil {
			return nil, err
		}
		f.Object = obj
	}
	return f, nil
}

// overlay copies sibling keywords written next to a $ref, allOf or oneOf onto f.
func overlay(f *schema.Field, n *yaml.Node) {
	if d := str(n, "description"); d != "" {
		f.Description = d
	}
	if boolean(n, "nullable") {
		f.Nullable = true
	}
	if ex := example(n); ex != nil {
		f.Example = ex
	}
}

func nullableBranch(seq *yaml.Node) bool {
	for _, b := range items(seq) {
		if str(b, "type") == "null" {
			return true
		}
	}
	return false
}

// kindOf reads "type", which may be a list in OpenAPI 3.1.
func kindOf(n *yaml.Node) (schema.Kind, bool) {
	t := get(n, "type")
	var names []string
	switch {
	case t == nil:
	case t.Kind == yaml.SequenceNode:
		for _, it := range items(t) {
			names = append(names, it.Value)
		}
	default:
		names = []string{t.Value}
	}

	nullable := false
	for _, name := range names {
		if name == "null" {
			nullable = true
		}
	}
	for _, name := range names {
		if k, ok := schema.ParseKind(name); ok {
			return k, nullable
		}
	}
	switch {
	case has(n, "properties"), has(n, "additionalProperties"):
		return schema.KindObject, nullable
	case has(n, "items"):
		return schema.KindArray, nullable
	}
	return schema.KindString, nullable
}

// isObjectSchema reports whether n describes an object type worth naming.
func isObjectSchema(n *yaml.Node) bool {
	if n == nil {
		return false
	}
	if has(n, "allOf") {
		return true
	}
	k, _ := kindOf(n)
	return k == schema.KindObject && !has(n, "$ref")
}

// exclusiveBound handles both the OpenAPI 3.0 boolean flag and the 3.1 numeric form.
func exclusiveBound(n *yaml.Node, key string, bound **float64, flag *bool) {
	v := get(n, key)
	if v == nil || v.Kind != yaml.ScalarNode {
		return
	}
	if v.Tag == "!!bool" {
		*flag = boolean(n, key)
		return
	}
	if f := number(n, key); f != nil {
		*bound = f
		*flag = true
	}
}

func example(n *yaml.Node) any {
	if ex := get(n, "example"); ex != nil {
		return value(ex)
	}
	if exs := items(get(n, "examples")); len(exs) > 0 {
		return value(exs[0])
	}
	return nil
}

func (l *loader) endpoints() []schema.Endpoint {
	var out []schema.Endpoint
	for _, p := range pairs(get(l.root, "paths")) {
		for _, op := range pairs(p.value) {
			if !httpMethods[strings.ToLower(op.key)] {
				continue
			}
			out = append(out, schema.Endpoint{
				Path:           p.key,
				Method:         strings.ToUpper(op.key),
				OperationID:    str(op.value, "operationId"),
				Summary:        str(op.value, "summary"),
				Description:    str(op.value, "description"),
				RequestSchema:  requestSchema(op.value),
				ResponseSchema: responseSchema(op.value),
			})
		}
	}
	return out
}

func requestSchema(op *yaml.Node) string {
	if body := get(op, "requestBody"); body != nil {
		return schemaName(get(jsonContent(body), "schema"))
	}
	for _, param := range items(get(op, "parameters")) {
		if str(param, "in") == "body" {
			return schemaName(get(param, "schema"))
		}
	}
	return ""
}

func responseSchema(op *yaml.Node) string {
	responses := get(op, "responses")
	for _, code := range []string{"200", "201"} {
		resp := get(responses, code)
		if resp == nil {
			continue
		}
		if s := get(resp, "schema"); s != nil {
			return schemaName(s)
		}
		return schemaName(get(jsonContent(resp), "schema"))
	}
	return ""
}

// jsonContent picks the application/json media type, or the first JSON-like one.
func jsonContent(n *yaml.Node) *yaml.Node {
	content := get(n, "content")
	if c := get(content, "application/json"); c != nil {
		return c
	}
	for _, p := range pairs(content) {
		if strings.Contains(p.key, "json") {
			return p.value
		}
	}
	return nil
}

// schemaName names the schema a body refers to: a $ref, an array of $ref, or a
// single-part allOf.
func schemaName(n *yaml.Node) string {
	if n == nil {
		return ""
	}
	if ref := str(n, "$ref"); ref != "" {
		return refName(ref)
	}
	if it := get(n, "items"); it != nil {
		return schemaName(it)
	}
	if parts := items(get(n, "allOf")); len(parts) == 1 {
		return schemaName(parts[0])
	}
	return ""
}
