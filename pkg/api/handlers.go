package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/errmodel"
	"github.com/wilhg/metadata/pkg/service"
)

func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	var in organizationRequest
	if err := decode(r, &in); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	org, err := s.svc.Organizations.Create(r.Context(), in.Name, in.WarehouseProject)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, organizationOut(org))
}

func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := s.svc.Organizations.Get(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, organizationOut(org))
}

func (s *Server) setPrincipals(w http.ResponseWriter, r *http.Request) {
	var in principalsRequest
	if err := decode(r, &in); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	org, err := s.svc.Organizations.SetPrincipals(r.Context(), mux.Vars(r)["name"], in.Principals)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, organizationOut(org))
}

func (s *Server) registerApp(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterApp
	if err := decode(r, &in); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	app, err := s.svc.Apps.Register(r.Context(), in)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appOut(app))
}

func (s *Server) listApps(w http.ResponseWriter, r *http.Request) {
	apps, err := s.svc.Apps.ListReady(r.Context())
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	out := make([]appResponse, 0, len(apps))
	for _, a := range apps {
		out = append(out, appOut(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getApp(w http.ResponseWriter, r *http.Request) {
	app, err := s.svc.Apps.Get(r.Context(), mux.Vars(r)["app_id"])
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appOut(app))
}

func (s *Server) setIntegration(w http.ResponseWriter, r *http.Request) {
	var in domain.Integrations
	if err := decode(r, &in); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	app, err := s.svc.Apps.SetIntegration(r.Context(), mux.Vars(r)["app_id"], in)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appOut(app))
}

func (s *Server) updateFreshness(w http.ResponseWriter, r *http.Request) {
	var in freshnessRequest
	if err := decode(r, &in); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	vars := mux.Vars(r)
	ds, err := s.svc.Apps.UpdateDatasourceFreshness(r.Context(), vars["app_id"], vars["datasource_id"], in.HasDataUpTo)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, datasourceOut(ds))
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Events.List(r.Context(), mux.Vars(r)["app_id"])
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createOrUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var in service.CreateOrUpdateEvent
	if err := decode(r, &in); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	ev, err := s.svc.Events.CreateOrUpdate(r.Context(), mux.Vars(r)["app_id"], in)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ev, err := s.svc.Events.GetByName(r.Context(), vars["app_id"], vars["name"])
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) eventsByApp(w http.ResponseWriter, r *http.Request) {
	cat, err := s.svc.Apps.EventsByApp(r.Context())
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, catalogOut(cat))
}

func (s *Server) listCommonEvents(w http.ResponseWriter, r *http.Request) {
	commons, err := s.svc.Catalog.CommonEvents(r.Context())
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	out := make([]schemaResponse, 0, len(commons))
	for _, c := range commons {
		out = append(out, schemaOut(c.Schema))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createCommonEvent(w http.ResponseWriter, r *http.Request) {
	var in service.NewSchema
	if err := decode(r, &in); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	ce, err := s.svc.Catalog.CreateCommonEvent(r.Context(), in)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, schemaOut(ce.Schema))
}

func (s *Server) addCommonEventParameters(w http.ResponseWriter, r *http.Request) {
	var in parametersRequest
	if err := decode(r, &in); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	ce, err := s.svc.Catalog.AddCommonEventParameters(r.Context(), mux.Vars(r)["name"], in.Parameters)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schemaOut(ce.Schema))
}

func (s *Server) listEventContexts(w http.ResponseWriter, r *http.Request) {
	contexts, err := s.svc.Catalog.EventContexts(r.Context())
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	out := make([]contextResponse, 0, len(contexts))
	for _, c := range contexts {
		out = append(out, contextOut(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createEventContext(w http.ResponseWriter, r *http.Request) {
	var in contextRequest
	if err := decode(r, &in); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	ec, err := s.svc.Catalog.CreateEventContext(r.Context(), in.NewSchema, in.Embedded)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, contextOut(ec))
}

func (s *Server) addEventContextParameters(w http.ResponseWriter, r *http.Request) {
	var in parametersRequest
	if err := decode(r, &in); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	ec, err := s.svc.Catalog.AddEventContextParameters(r.Context(), mux.Vars(r)["name"], in.Parameters)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contextOut(ec))
}

func (s *Server) listAtomicParameters(w http.ResponseWriter, r *http.Request) {
	atomics, err := s.svc.Catalog.AtomicParameters(r.Context())
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	out := make([]atomicResponse, 0, len(atomics))
	for _, a := range atomics {
		out = append(out, atomicOut(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createAtomicParameter(w http.ResponseWriter, r *http.Request) {
	var in service.NewAtomic
	if err := decode(r, &in); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	a, err := s.svc.Catalog.CreateAtomicParameter(r.Context(), in)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, atomicOut(a))
}

func (s *Server) getRawSchema(w http.ResponseWriter, r *http.Request) {
	raw, err := s.svc.RawSchemas.Get(r.Context(), mux.Vars(r)["path"])
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rawSchemaOut(raw))
}

// putRawSchema takes the document itself as the request body.
func (s *Server) putRawSchema(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("invalid_body", "cannot read request body", nil))
		return
	}
	raw, err := s.svc.RawSchemas.Put(r.Context(), mux.Vars(r)["path"], json.RawMessage(body))
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rawSchemaOut(raw))
}
