package compiler

import (
	"github.com/wilhg/metadata/pkg/adapters/warehouse"
	"github.com/wilhg/metadata/pkg/domain"
)

// ParamsField is the record holding an event's own parameters.
const ParamsField = "params"

var scalarTypes = map[domain.ParameterType]warehouse.FieldType{
	domain.TypeInteger:  warehouse.TypeInteger,
	domain.TypeNumber:   warehouse.TypeFloat,
	domain.TypeBoolean:  warehouse.TypeBoolean,
	domain.TypeString:   warehouse.TypeString,
	domain.TypeDate:     warehouse.TypeDate,
	domain.TypeDatetime: warehouse.TypeTimestamp,
}

// FieldType maps a parameter type to its column type; maps become records.
func FieldType(t domain.ParameterType) warehouse.FieldType {
	if t.IsMap() {
		return warehouse.TypeRecord
	}
	return scalarTypes[t]
}

func parameterField(p *domain.SchemaParameter) warehouse.Field {
	f := warehouse.Field{
		Name:        p.Name,
		Type:        FieldType(p.Type),
		Mode:        warehouse.ModeNullable,
		Description: p.Description,
	}
	if p.Type.IsMap() {
		f.Mode = warehouse.ModeRepeated
		f.Fields = []warehouse.Field{
			{Name: "key", Type: warehouse.TypeString, Mode: warehouse.ModeNullable, Description: "Key of map object"},
			{Name: "value", Type: FieldType(p.Type.ValueType()), Mode: warehouse.ModeNullable, Description: "Value of map object"},
		}
	}
	return f
}

func parameterFields(params []*domain.SchemaParameter) []warehouse.Field {
	out := make([]warehouse.Field, 0, len(params))
	for _, p := range params {
		out = append(out, parameterField(p))
	}
	return out
}

// EventShape is the table schema of an event or context: atomic columns,
// a params record with every version's parameters, and one record per
// embedded context. Empty records are omitted since the warehouse rejects them.
func EventShape(params []*domain.SchemaParameter, contexts []*domain.EventContext, atomics []*domain.AtomicParameter) []warehouse.Field {
	out := make([]warehouse.Field, 0, len(atomics)+1+len(contexts))
	for _, a := range atomics {
		out = append(out, warehouse.Field{Name: a.Name, Type: FieldType(a.Type), Mode: warehouse.ModeNullable})
	}
	if len(params) > 0 {
		out = append(out, warehouse.Field{
			Name:   ParamsField,
			Type:   warehouse.TypeRecord,
			Mode:   warehouse.ModeNullable,
			Fields: parameterFields(params),
		})
	}
	for _, c := range contexts {
		if len(c.Schema.Parameters) == 0 {
			continue
		}
		out = append(out, warehouse.Field{
			Name:   c.Schema.Name,
			Type:   warehouse.TypeRecord,
			Mode:   warehouse.ModeNullable,
			Fields: parameterFields(c.Schema.Parameters),
		})
	}
	return out
}
