package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/plugbus/internal/catalog"
	"github.com/mattjoyce/plugbus/internal/dispatch"
	"github.com/mattjoyce/plugbus/internal/plugins/timerestriction"
	"github.com/mattjoyce/plugbus/internal/tenant"
)

// maxBodyBytes caps request bodies on write endpoints.
const maxBodyBytes = 1 << 20

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:           "ok",
		UptimeSeconds:    int64(time.Since(s.startedAt).Seconds()),
		ComponentsLoaded: s.deps.Components.Len(),
		Channels:         len(s.deps.Channels.Channels()),
		EventsDropped:    s.deps.Events.Dropped(),
	}
	if s.deps.Engine != nil {
		es := s.deps.Engine.Stats()
		rs := s.deps.Owners.Stats()
		resp.Dispatch = &DispatchStats{
			Sends:            es.Sends,
			FastPath:         es.FastPath,
			Invoked:          es.Invoked,
			Skipped:          es.Skipped,
			Failed:           es.Failed,
			OwnerResolutions: rs.Resolutions,
			OwnerCacheHits:   rs.CacheHits,
			OwnerWalks:       rs.Walks,
			OwnersCached:     rs.Cached,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	all := s.deps.Components.All()
	out := make([]ComponentResponse, 0, len(all))
	for _, c := range all {
		out = append(out, ComponentResponse{
			ID:                  c.ID,
			Name:                c.Name,
			Version:             c.Version,
			Source:              string(c.Source),
			Core:                c.Core,
			Compatible:          c.Compatible(),
			CompatibilityErrors: c.CompatibilityErrors,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels := s.deps.Channels.Channels()
	out := make([]ChannelResponse, 0, len(channels))
	for _, ch := range channels {
		resp := ChannelResponse{
			Name:          ch.Name,
			Description:   ch.Description,
			PayloadFields: ch.PayloadFields,
			Handlers:      []HandlerResponse{},
		}
		for _, h := range ch.Handlers() {
			owner, _ := s.deps.Owners.OwnerOf(h.Origin)
			resp.Handlers = append(resp.Handlers, HandlerResponse{ID: h.ID, Origin: h.Origin, Owner: owner})
		}
		out = append(out, resp)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := s.deps.Tenants.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list tenants", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list tenants")
		return
	}
	out := make([]TenantResponse, 0, len(tenants))
	for _, t := range tenants {
		resp, err := s.tenantResponse(r, &t)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to read tenant components")
			return
		}
		out = append(out, resp)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTenant(w, r)
	if !ok {
		return
	}
	resp, err := s.tenantResponse(r, t)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read tenant components")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePutTenant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tenantID")

	var req PutTenantRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	t := tenant.Tenant{ID: id, Name: strings.TrimSpace(req.Name)}
	if err := s.deps.Tenants.Upsert(r.Context(), t); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stored, err := s.deps.Tenants.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read tenant")
		return
	}
	resp, err := s.tenantResponse(r, stored)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read tenant components")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnableComponent(w http.ResponseWriter, r *http.Request) {
	s.toggleComponent(w, r, true)
}

func (s *Server) handleDisableComponent(w http.ResponseWriter, r *http.Request) {
	s.toggleComponent(w, r, false)
}

func (s *Server) toggleComponent(w http.ResponseWriter, r *http.Request, enable bool) {
	t, ok := s.loadTenant(w, r)
	if !ok {
		return
	}
	componentID := chi.URLParam(r, "componentID")
	c, found := s.deps.Components.Lookup(componentID)
	if !found {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("component %q is not installed", componentID))
		return
	}
	if c.Core {
		s.writeError(w, http.StatusConflict, fmt.Sprintf("component %q is core and always enabled", componentID))
		return
	}

	var err error
	if enable {
		err = s.deps.Tenants.Enable(r.Context(), t.ID, componentID)
	} else {
		err = s.deps.Tenants.Disable(r.Context(), t.ID, componentID)
	}
	if err != nil {
		s.logger.Error("failed to update tenant components", "tenant_id", t.ID, "component_id", componentID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update tenant components")
		return
	}

	resp, err := s.tenantResponse(r, t)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read tenant components")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleSend dispatches the request body as the channel payload. A handler
// failure is reported with the responses collected before it.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	channelName := chi.URLParam(r, "channel")

	raw, err := readBody(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Sender.SendJSON(r.Context(), channelName, tenantID, raw)
	resp := SendResponse{Channel: channelName, Tenant: tenantID, Handlers: res.HandlerIDs()}
	if resp.Handlers == nil {
		resp.Handlers = []string{}
	}
	resp.Responses = encodeResponses(res)

	if err == nil {
		resp.Result, err = catalog.Summarize(channelName, raw, res)
	}

	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, resp)
	case errors.Is(err, tenant.ErrTenantNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrPayloadRequired), errors.Is(err, catalog.ErrInvalidPayload):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dispatch.ErrInvalidSender):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		resp.Error = err.Error()
		respondJSON(w, http.StatusBadGateway, resp)
	}
}

func (s *Server) handleListRestrictions(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTenant(w, r)
	if !ok {
		return
	}
	item := r.URL.Query().Get("item")
	if item == "" {
		s.writeError(w, http.StatusBadRequest, "item query parameter is required")
		return
	}
	rs, err := s.deps.Restrictions.ForItem(r.Context(), t.ID, item)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read restrictions")
		return
	}
	if rs == nil {
		rs = []timerestriction.Restriction{}
	}
	respondJSON(w, http.StatusOK, rs)
}

func (s *Server) handleAddRestriction(w http.ResponseWriter, r *http.Request) {
	t, ok := s.loadTenant(w, r)
	if !ok {
		return
	}
	var req RestrictionRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	restriction := timerestriction.Restriction{
		Item:       req.Item,
		From:       req.From,
		Until:      req.Until,
		Price:      req.Price,
		Variations: req.Variations,
	}
	id, err := s.deps.Restrictions.Add(r.Context(), t.ID, restriction)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	restriction.ID = id
	respondJSON(w, http.StatusCreated, restriction)
}

// handleEventSnapshot handles GET /events?since=N&type=T.
func (s *Server) handleEventSnapshot(w http.ResponseWriter, r *http.Request) {
	since := int64(0)
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}
	types := r.URL.Query()["type"]
	respondJSON(w, http.StatusOK, EventsResponse{
		Events:  s.deps.Events.SnapshotSince(since, types...),
		Dropped: s.deps.Events.Dropped(),
	})
}

func (s *Server) loadTenant(w http.ResponseWriter, r *http.Request) (*tenant.Tenant, bool) {
	id := chi.URLParam(r, "tenantID")
	t, err := s.deps.Tenants.Get(r.Context(), id)
	if errors.Is(err, tenant.ErrTenantNotFound) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("tenant %q not found", id))
		return nil, false
	}
	if err != nil {
		s.logger.Error("failed to read tenant", "tenant_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read tenant")
		return nil, false
	}
	return t, true
}

func (s *Server) tenantResponse(r *http.Request, t *tenant.Tenant) (TenantResponse, error) {
	enabled, err := s.deps.Tenants.EnabledComponents(r.Context(), t.ID)
	if err != nil {
		return TenantResponse{}, err
	}
	if enabled == nil {
		enabled = []string{}
	}
	return TenantResponse{ID: t.ID, Name: t.Name, Components: enabled}, nil
}

func encodeResponses(res dispatch.Result) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(res))
	for _, v := range res.Values() {
		b, err := json.Marshal(v)
		if err != nil {
			b = json.RawMessage(strconv.Quote(fmt.Sprintf("%v", v)))
		}
		out = append(out, b)
	}
	return out
}

func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	if r.Body == nil {
		return nil, nil
	}
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
