package warehouse

import (
	"fmt"

	"github.com/wilhg/metadata/pkg/errmodel"
)

// Additions returns the fields of desired that existing lacks or
// describes differently. Records present on both sides are compared
// recursively and contribute a record holding only their changed
// children. Retyping or dropping a field is an error: tables only ever
// grow.
func Additions(existing, desired []Field) ([]Field, error) {
	return additions("", existing, desired)
}

func additions(prefix string, existing, desired []Field) ([]Field, error) {
	byName := make(map[string]Field, len(existing))
	for _, f := range existing {
		byName[f.Name] = f
	}
	wanted := make(map[string]bool, len(desired))
	var out []Field
	for _, d := range desired {
		wanted[d.Name] = true
		e, ok := byName[d.Name]
		if !ok {
			out = append(out, d)
			continue
		}
		path := prefix + d.Name
		if e.Type != d.Type || e.mode() != d.mode() {
			return nil, errmodel.Validation("incompatible_schema",
				fmt.Sprintf("field %s cannot change from %s %s to %s %s", path, e.mode(), e.Type, d.mode(), d.Type),
				map[string]any{"field": path})
		}
		described := e.Description != d.Description
		if d.Type != TypeRecord {
			if described {
				out = append(out, d)
			}
			continue
		}
		nested, err := additions(path+".", e.Fields, d.Fields)
		if err != nil {
			return nil, err
		}
		if len(nested) > 0 || described {
			rec := d
			rec.Fields = nested
			out = append(out, rec)
		}
	}
	for _, e := range existing {
		if !wanted[e.Name] {
			return nil, errmodel.Validation("incompatible_schema",
				fmt.Sprintf("field %s%s would be dropped", prefix, e.Name),
				map[string]any{"field": prefix + e.Name})
		}
	}
	return out, nil
}

// Merge applies additions produced by Additions to existing and returns
// the resulting schema. A field present on both sides takes the
// addition's description. existing is not modified.
func Merge(existing, additions []Field) []Field {
	out := make([]Field, len(existing), len(existing)+len(additions))
	copy(out, existing)
	index := make(map[string]int, len(existing))
	for i, f := range out {
		index[f.Name] = i
	}
	for _, a := range additions {
		i, ok := index[a.Name]
		if !ok {
			index[a.Name] = len(out)
			out = append(out, a)
			continue
		}
		rec := out[i]
		rec.Description = a.Description
		if rec.Type == TypeRecord {
			rec.Fields = Merge(rec.Fields, a.Fields)
		}
		out[i] = rec
	}
	return out
}
