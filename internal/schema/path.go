package schema

import "strings"

// LookupPath resolves a dotted field path ("data.consentId") against obj.
// Array fields are traversed through their item type.
func LookupPath(obj *Object, path string) *Field {
	if obj == nil || path == "" {
		return nil
	}
	head, rest, nested := strings.Cut(path, ".")
	f, ok := obj.Field(head)
	if !ok {
		return nil
	}
	if !nested {
		return f
	}
	for f.Kind == KindArray && f.Items != nil {
		f = f.Items
	}
	if f.Kind != KindObject {
		return nil
	}
	return LookupPath(f.Object, rest)
}

func matchPath(pattern, path string) bool {
	pp := splitPath(pattern)
	ps := splitPath(path)
	if len(pp) != len(ps) {
		return false
	}
	for i, seg := range pp {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			continue
		}
		if seg != ps[i] {
			return false
		}
	}
	return true
}

func splitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
}
