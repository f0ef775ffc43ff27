package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/wilhg/metadata/pkg/errmodel"
)

const maxNameLength = 50

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9]+(_[a-z0-9]+)*$`)

// ValidName reports whether name is usable as a schema or parameter name.
func ValidName(name string) bool {
	return len(name) <= maxNameLength && namePattern.MatchString(name)
}

// ParameterType is a scalar or map<string,scalar> parameter type.
type ParameterType string

const (
	TypeNumber   ParameterType = "number"
	TypeBoolean  ParameterType = "boolean"
	TypeInteger  ParameterType = "integer"
	TypeDate     ParameterType = "date"
	TypeDatetime ParameterType = "datetime"
	TypeString   ParameterType = "string"

	TypeMapNumber   ParameterType = "map<string,number>"
	TypeMapBoolean  ParameterType = "map<string,boolean>"
	TypeMapInteger  ParameterType = "map<string,integer>"
	TypeMapDate     ParameterType = "map<string,date>"
	TypeMapDatetime ParameterType = "map<string,datetime>"
	TypeMapString   ParameterType = "map<string,string>"
)

const mapPrefix = "map<string,"

// ParameterTypes lists every supported type in declaration order.
var ParameterTypes = []ParameterType{
	TypeNumber, TypeBoolean, TypeInteger, TypeDate, TypeDatetime, TypeString,
	TypeMapNumber, TypeMapBoolean, TypeMapInteger, TypeMapDate, TypeMapDatetime, TypeMapString,
}

// ParseParameterType validates a type string.
func ParseParameterType(s string) (ParameterType, error) {
	for _, t := range ParameterTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", errmodel.Validation("invalid_type", fmt.Sprintf("unsupported parameter type %q", s), map[string]any{"type": s})
}

// IsMap reports whether t is a map<string,T> type.
func (t ParameterType) IsMap() bool { return strings.HasPrefix(string(t), mapPrefix) }

// ValueType returns T for map<string,T> and t itself for scalars.
func (t ParameterType) ValueType() ParameterType {
	if !t.IsMap() {
		return t
	}
	return ParameterType(strings.TrimSuffix(strings.TrimPrefix(string(t), mapPrefix), ">"))
}

// SchemaParameter is one versioned field of a Schema.
type SchemaParameter struct {
	ID                  int64
	Name                string
	Type                ParameterType
	IntroducedAtVersion int
	Alias               string
	Description         string
	IsGDPR              bool
	IsGDPRUpdatedAt     time.Time
	CreatedAt           time.Time
}

// NewSchemaParameter validates name and type.
func NewSchemaParameter(name string, typ ParameterType, version int) (*SchemaParameter, error) {
	if !ValidName(name) {
		return nil, errmodel.Validation("invalid_name", fmt.Sprintf("invalid parameter name %q", name), map[string]any{"name": name})
	}
	if _, err := ParseParameterType(string(typ)); err != nil {
		return nil, err
	}
	if version < 0 {
		return nil, errmodel.Validation("invalid_version", "parameter version must not be negative", map[string]any{"name": name})
	}
	now := time.Now().UTC()
	return &SchemaParameter{
		Name:                name,
		Type:                typ,
		IntroducedAtVersion: version,
		IsGDPRUpdatedAt:     now,
		CreatedAt:           now,
	}, nil
}

// DisplayAlias returns the alias or a title-cased name.
func (p *SchemaParameter) DisplayAlias() string {
	if p.Alias != "" {
		return p.Alias
	}
	return TitleName(p.Name)
}

// SetGDPR updates the flag and its timestamp when it changes.
func (p *SchemaParameter) SetGDPR(v bool, now time.Time) {
	if p.IsGDPR == v {
		return
	}
	p.IsGDPR = v
	p.IsGDPRUpdatedAt = now.UTC()
}

// Schema is a named, versioned parameter list. Parameters are append-only:
// each update batch introduces exactly one new version.
type Schema struct {
	ID          int64
	Vendor      string
	Name        string
	Alias       string
	Description string
	Parameters  []*SchemaParameter
	CreatedAt   time.Time
}

// NewSchema validates the name and takes ownership of params.
func NewSchema(vendor, name string, params ...*SchemaParameter) (*Schema, error) {
	if !ValidName(name) {
		return nil, errmodel.Validation("invalid_name", fmt.Sprintf("invalid schema name %q", name), map[string]any{"name": name})
	}
	return &Schema{
		Vendor:     vendor,
		Name:       name,
		Parameters: params,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Saved reports whether the schema was persisted.
func (s *Schema) Saved() bool { return s.ID != 0 }

// CurrentVersion is the highest introduced_at_version, 0 when empty.
func (s *Schema) CurrentVersion() int {
	v := 0
	for _, p := range s.Parameters {
		if p.IntroducedAtVersion > v {
			v = p.IntroducedAtVersion
		}
	}
	return v
}

// NextExpectedVersion is 0 for unsaved schemas, otherwise CurrentVersion+1.
func (s *Schema) NextExpectedVersion() int {
	if !s.Saved() {
		return 0
	}
	return s.CurrentVersion() + 1
}

// AddParameters appends one version batch. All parameters must carry
// NextExpectedVersion and unique names; nothing is appended on error.
func (s *Schema) AddParameters(params []*SchemaParameter) error {
	if len(params) == 0 {
		return nil
	}
	expected := s.NextExpectedVersion()
	seen := make(map[string]bool, len(s.Parameters)+len(params))
	for _, p := range s.Parameters {
		seen[p.Name] = true
	}
	for _, p := range params {
		if p.IntroducedAtVersion != expected {
			return errmodel.Validation("invalid_version",
				fmt.Sprintf("invalid version %d, expected %d", p.IntroducedAtVersion, expected),
				map[string]any{"schema": s.Name, "parameter": p.Name})
		}
		if seen[p.Name] {
			return errmodel.Validation("duplicate_parameter",
				fmt.Sprintf("cannot add parameter %s to schema %s as it already exists", p.Name, s.Name),
				map[string]any{"schema": s.Name, "parameter": p.Name})
		}
		seen[p.Name] = true
	}
	s.Parameters = append(s.Parameters, params...)
	return nil
}

// Parameter looks a parameter up by name.
func (s *Schema) Parameter(name string) (*SchemaParameter, error) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, errmodel.NotFound(fmt.Sprintf("parameter %s of schema %s does not exist", name, s.Name),
		map[string]any{"schema": s.Name, "parameter": name})
}

// ParametersForVersion returns parameters visible at version, in order.
func (s *Schema) ParametersForVersion(version int) []*SchemaParameter {
	out := make([]*SchemaParameter, 0, len(s.Parameters))
	for _, p := range s.Parameters {
		if p.IntroducedAtVersion <= version {
			out = append(out, p)
		}
	}
	return out
}

// Versions returns the distinct parameter versions ascending; {0} when empty.
func (s *Schema) Versions() []int {
	if len(s.Parameters) == 0 {
		return []int{0}
	}
	set := map[int]bool{}
	for _, p := range s.Parameters {
		set[p.IntroducedAtVersion] = true
	}
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// DisplayAlias returns the alias or a title-cased name.
func (s *Schema) DisplayAlias() string {
	if s.Alias != "" {
		return s.Alias
	}
	return TitleName(s.Name)
}

// withParameters returns a shallow copy carrying params.
func (s *Schema) withParameters(params []*SchemaParameter) *Schema {
	cp := *s
	cp.Parameters = params
	return &cp
}

// TitleName turns snake_case into "Title Case": underscores become spaces
// and every letter following a non-letter is upper-cased.
func TitleName(name string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range strings.ReplaceAll(name, "_", " ") {
		switch {
		case unicode.IsLetter(r) && !prevLetter:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsLetter(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}
