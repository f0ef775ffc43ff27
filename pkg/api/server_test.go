package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/metadata/pkg/service"
	"github.com/wilhg/metadata/pkg/store/entstore"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	st := entstore.OpenTest(t)
	return NewServer(service.New(st, nil), nil).Handler()
}

func call(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorEnvelope struct {
	Error struct {
		Category string `json:"category"`
		Code     string `json:"code"`
	} `json:"error"`
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	rec := call(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRegisterAppFlow(t *testing.T) {
	h := newTestServer(t)

	rec := call(t, h, http.MethodPost, "/organizations", organizationRequest{Name: "algebra", WarehouseProject: "client-project"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(t, h, http.MethodPost, "/apps", map[string]any{
		"app_id":        "newapp",
		"organization":  "algebra",
		"has_data_from": "2023-06-12",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	app := decodeBody[appResponse](t, rec)
	assert.Equal(t, "NOT_READY", app.Status)
	assert.Equal(t, "UTC", app.Timezone)
	require.Len(t, app.Datasources, 1)
	assert.Equal(t, "user_history", app.Datasources[0].ID)
	assert.Equal(t, "2023-06-12", app.Datasources[0].HasDataFrom.String())

	rec = call(t, h, http.MethodPost, "/apps", map[string]any{"app_id": "newapp", "organization": "algebra"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, h, http.MethodPost, "/apps", map[string]any{"app_id": "other", "organization": "nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, h, http.MethodPut, "/apps/newapp/datasources/events_login", map[string]any{"has_data_up_to": "2023-06-15"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ds := decodeBody[datasourceResponse](t, rec)
	require.NotNil(t, ds.HasDataUpTo)
	assert.Equal(t, "2023-06-15", ds.HasDataUpTo.String())

	rec = call(t, h, http.MethodGet, "/apps", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]appResponse](t, rec), "apps are listed once reconciled")
}

func TestEventEndpoints(t *testing.T) {
	h := newTestServer(t)
	require.Equal(t, http.StatusCreated, call(t, h, http.MethodPost, "/organizations", organizationRequest{Name: "algebra", WarehouseProject: "p"}).Code)
	require.Equal(t, http.StatusCreated, call(t, h, http.MethodPost, "/apps", map[string]any{"app_id": "game", "organization": "algebra"}).Code)

	rec := call(t, h, http.MethodPost, "/apps/game/events", service.CreateOrUpdateEvent{
		Name:          "event",
		NewParameters: []service.NewParameter{{Name: "param", Type: "string"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, h, http.MethodPost, "/apps/game/events", service.CreateOrUpdateEvent{
		Name:          "event",
		NewParameters: []service.NewParameter{{Name: "param1", Type: "integer", Version: 1}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, h, http.MethodGet, "/apps/game/events/event", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ev := decodeBody[service.EventView](t, rec)
	require.Len(t, ev.Parameters, 2)
	assert.Equal(t, "param1", ev.Parameters[1].Name)
	assert.Equal(t, 1, ev.Parameters[1].Version)

	rec = call(t, h, http.MethodPost, "/apps/game/events", service.CreateOrUpdateEvent{
		Name:          "event",
		NewParameters: []service.NewParameter{{Name: "param2", Type: "varchar", Version: 2}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeBody[errorEnvelope](t, rec)
	assert.Equal(t, "validation", env.Error.Category)

	rec = call(t, h, http.MethodGet, "/apps/game/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[service.EventList](t, rec)
	assert.Len(t, list.Events, 1)
	assert.Len(t, list.SystemParameters, 3)

	rec = call(t, h, http.MethodGet, "/apps/game/events/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	h := newTestServer(t)

	rec := call(t, h, http.MethodPost, "/common-events", service.NewSchema{
		Name:       "login",
		Parameters: []service.NewParameter{{Name: "custom_method", Type: "string"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "custom_ prefix is reserved")

	rec = call(t, h, http.MethodPost, "/common-events", service.NewSchema{
		Name:       "login",
		Parameters: []service.NewParameter{{Name: "method", Type: "string"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(t, h, http.MethodPost, "/event-contexts", map[string]any{"name": "ctx_geo_context", "embedded": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ctxOut := decodeBody[contextResponse](t, rec)
	assert.True(t, ctxOut.Embedded)
	assert.Equal(t, "Geo Context", ctxOut.Alias)

	rec = call(t, h, http.MethodGet, "/event-contexts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]contextResponse](t, rec), 4)

	rec = call(t, h, http.MethodPost, "/atomic-parameters", service.NewAtomic{Name: "app_id", Type: "string"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, h, http.MethodGet, "/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cat := decodeBody[catalogResponse](t, rec)
	assert.Equal(t, []string{"advertising_id", "idfa"}, cat.GDPRContextParameters["ctx_device_context"])
	assert.Equal(t, []string{"ctx_event_context"}, cat.StandaloneContexts)
	assert.Empty(t, cat.Apps)
}

func TestRawSchemaEndpoints(t *testing.T) {
	h := newTestServer(t)
	path := "/raw-schemas/com.acme/ping/jsonschema/1-0-0"

	rec := call(t, h, http.MethodPut, path, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, http.MethodPut, path, `{"type":"object"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, h, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeBody[rawSchemaResponse](t, rec)
	assert.Equal(t, "com.acme/ping/jsonschema/1-0-0", out.Path)
	assert.JSONEq(t, `{"type":"object"}`, string(out.Document))
	assert.Equal(t, "NOT_READY", out.Status)
}
