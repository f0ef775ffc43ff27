package compiler

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wilhg/metadata/pkg/domain"
)

// SelfDescribingMetaSchema is the $schema of every published document.
const SelfDescribingMetaSchema = "http://iglucentral.com/schemas/com.snowplowanalytics.self-desc/schema/jsonschema/1-0-0#"

var registryTypes = map[domain.ParameterType]string{
	domain.TypeInteger:  "integer",
	domain.TypeNumber:   "number",
	domain.TypeBoolean:  "boolean",
	domain.TypeString:   "string",
	domain.TypeDate:     "string",
	domain.TypeDatetime: "string",
}

// Document is one immutable registry artifact.
type Document struct {
	Path string
	Body json.RawMessage
}

// SchemaKey is the registry key of a schema version, without the iglu: scheme.
func SchemaKey(vendor, name string, version int) string {
	return fmt.Sprintf("%s/%s/jsonschema/%s", vendor, name, VersionTag(version))
}

// VersionTag renders a schema version as SchemaVer.
func VersionTag(version int) string { return fmt.Sprintf("1-0-%d", version) }

type self struct {
	Vendor  string `json:"vendor"`
	Name    string `json:"name"`
	Format  string `json:"format"`
	Version string `json:"version"`
}

// Documents renders one document per historical version of g.
func Documents(g domain.SchemaGenerator) ([]Document, error) {
	schema := g.EffectiveSchema()
	versions := g.Versions()
	out := make([]Document, 0, len(versions))
	for _, v := range versions {
		doc, err := BuildDocument(schema, g.RegistryName(), v)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// BuildDocument renders the document of schema at version, published as name.
func BuildDocument(schema *domain.Schema, name string, version int) (Document, error) {
	props := map[string]*jsonschema.Schema{}
	for _, p := range schema.ParametersForVersion(version) {
		props[p.Name] = property(p)
	}
	js := &jsonschema.Schema{
		Schema:               SelfDescribingMetaSchema,
		Description:          schema.Description,
		Type:                 "object",
		Properties:           props,
		AdditionalProperties: closed(),
	}
	body, err := withSelf(js, self{
		Vendor:  schema.Vendor,
		Name:    name,
		Format:  "jsonschema",
		Version: VersionTag(version),
	})
	if err != nil {
		return Document{}, fmt.Errorf("render %s version %d: %w", name, version, err)
	}
	return Document{Path: SchemaKey(schema.Vendor, name, version), Body: body}, nil
}

func property(p *domain.SchemaParameter) *jsonschema.Schema {
	if !p.Type.IsMap() {
		return &jsonschema.Schema{Type: registryTypes[p.Type], Description: p.Description}
	}
	return &jsonschema.Schema{
		Type:        "array",
		Description: p.Description,
		Items: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"key":   {Type: "string"},
				"value": {Type: registryTypes[p.Type.ValueType()]},
			},
			Required:             []string{"key", "value"},
			AdditionalProperties: closed(),
		},
	}
}

// closed is the false schema, rejecting any additional property.
func closed() *jsonschema.Schema { return &jsonschema.Schema{Not: &jsonschema.Schema{}} }

// withSelf adds the self-describing "self" keyword next to the schema
// keywords. The document and each of its properties always carry a
// description, empty or not.
func withSelf(js *jsonschema.Schema, s self) (json.RawMessage, error) {
	b, err := json.Marshal(js)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	m["self"] = s
	withDescription(m)
	if props, ok := m["properties"].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				withDescription(pm)
			}
		}
	}
	return json.Marshal(m)
}

func withDescription(m map[string]any) {
	if _, ok := m["description"]; !ok {
		m["description"] = ""
	}
}
