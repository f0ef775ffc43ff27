package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/metadata/pkg/errmodel"
)

func mustParam(t *testing.T, name string, typ ParameterType, version int) *SchemaParameter {
	t.Helper()
	p, err := NewSchemaParameter(name, typ, version)
	require.NoError(t, err)
	return p
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"event", "eve_nt", "event1", "a1_b2_c3"} {
		assert.True(t, ValidName(name), name)
	}
	for _, name := range []string{"Event", "_event", "event_", "1event", "e", "eve__nt", strings.Repeat("a", 51)} {
		assert.False(t, ValidName(name), name)
	}
	assert.True(t, ValidName(strings.Repeat("a", 50)))
}

func TestNewSchemaRejectsInvalidName(t *testing.T) {
	_, err := NewSchema("vendor", "Event")
	require.Error(t, err)
	assert.True(t, errmodel.IsValidation(err))

	_, err = NewSchemaParameter("_param", TypeString, 0)
	assert.True(t, errmodel.IsValidation(err))

	_, err = NewSchemaParameter("param", ParameterType("uuid"), 0)
	assert.True(t, errmodel.IsValidation(err))
}

func TestParameterTypeMap(t *testing.T) {
	assert.True(t, TypeMapDatetime.IsMap())
	assert.Equal(t, TypeDatetime, TypeMapDatetime.ValueType())
	assert.False(t, TypeInteger.IsMap())
	assert.Equal(t, TypeInteger, TypeInteger.ValueType())
}

func TestSchemaVersions(t *testing.T) {
	s, err := NewSchema("vendor", "event")
	require.NoError(t, err)
	assert.Equal(t, 0, s.CurrentVersion())
	assert.Equal(t, 0, s.NextExpectedVersion())
	assert.Equal(t, []int{0}, s.Versions())

	s.ID = 1
	assert.Equal(t, 1, s.NextExpectedVersion())
}

func TestAddParametersToNewSchema(t *testing.T) {
	s, err := NewSchema("vendor", "event")
	require.NoError(t, err)

	err = s.AddParameters([]*SchemaParameter{mustParam(t, "param", TypeString, 1)})
	require.Error(t, err)
	assert.True(t, errmodel.IsValidation(err))
	assert.Empty(t, s.Parameters)

	require.NoError(t, s.AddParameters([]*SchemaParameter{mustParam(t, "param", TypeString, 0)}))
	s.ID = 7
	require.NoError(t, s.AddParameters([]*SchemaParameter{
		mustParam(t, "param1", TypeInteger, 1),
		mustParam(t, "param2", TypeMapString, 1),
	}))

	names := []string{}
	for _, p := range s.Parameters {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"param", "param1", "param2"}, names)
	assert.Equal(t, 1, s.CurrentVersion())
	assert.Equal(t, []int{0, 1}, s.Versions())
	assert.Len(t, s.ParametersForVersion(0), 1)
}

func TestAddDuplicateParameter(t *testing.T) {
	s, err := NewSchema("vendor", "event", mustParam(t, "param", TypeString, 0))
	require.NoError(t, err)
	s.ID = 1

	err = s.AddParameters([]*SchemaParameter{mustParam(t, "param", TypeString, 1)})
	require.Error(t, err)
	assert.Len(t, s.Parameters, 1)

	err = s.AddParameters([]*SchemaParameter{mustParam(t, "a1", TypeString, 1), mustParam(t, "a1", TypeString, 1)})
	require.Error(t, err)
	assert.Len(t, s.Parameters, 1)

	require.NoError(t, s.AddParameters(nil))
	assert.Len(t, s.Parameters, 1)
}

func TestAddParametersToSavedSchemaWithoutParameters(t *testing.T) {
	s, err := NewSchema("vendor", "event")
	require.NoError(t, err)
	s.ID = 3

	require.Error(t, s.AddParameters([]*SchemaParameter{mustParam(t, "param", TypeString, 0)}))
	require.NoError(t, s.AddParameters([]*SchemaParameter{mustParam(t, "param", TypeString, 1)}))
}

func TestParameterLookup(t *testing.T) {
	s, err := NewSchema("vendor", "event", mustParam(t, "param", TypeString, 0))
	require.NoError(t, err)
	p, err := s.Parameter("param")
	require.NoError(t, err)
	assert.Equal(t, "Param", p.DisplayAlias())

	_, err = s.Parameter("missing")
	assert.True(t, errmodel.IsNotFound(err))
}

func TestTitleName(t *testing.T) {
	assert.Equal(t, "My Param", TitleName("my_param"))
	assert.Equal(t, "Event Context", TitleName("event_context"))
	assert.Equal(t, "Param1X", TitleName("param1x"))
}

func TestSetGDPRTracksChange(t *testing.T) {
	p := mustParam(t, "email", TypeString, 0)
	before := p.IsGDPRUpdatedAt
	later := before.Add(time.Hour)

	p.SetGDPR(false, later)
	assert.Equal(t, before, p.IsGDPRUpdatedAt)

	p.SetGDPR(true, later)
	assert.True(t, p.IsGDPR)
	assert.Equal(t, later, p.IsGDPRUpdatedAt)
}
