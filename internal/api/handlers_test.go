package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/plugbus/internal/auth"
	"github.com/mattjoyce/plugbus/internal/catalog"
	"github.com/mattjoyce/plugbus/internal/channel"
	"github.com/mattjoyce/plugbus/internal/config"
	"github.com/mattjoyce/plugbus/internal/dispatch"
	"github.com/mattjoyce/plugbus/internal/host"
)

const testKey = "test-key"

func newHost(t *testing.T) *host.Host {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.State.Path = filepath.Join(dir, "state.db")
	cfg.PluginsDir = filepath.Join(dir, "plugins")
	cfg.Tenants = map[string]config.TenantConf{
		"acme": {Name: "Acme", Components: []string{"plugbus.plugins.stripe"}},
	}
	h, err := host.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func depsFor(h *host.Host) Deps {
	return Deps{
		Components:   h.Components,
		Channels:     h.Channels,
		Owners:       h.Resolver,
		Tenants:      h.Tenants,
		Restrictions: h.Restrictions,
		Sender:       h,
		Engine:       h.Engine,
		Events:       h.Events,
	}
}

func newTestServer(t *testing.T, apiKey string) (*Server, *host.Host) {
	t.Helper()
	h := newHost(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{APIKey: apiKey}, depsFor(h), logger), h
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testKey)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealthzWithoutAuth(t *testing.T) {
	s, _ := newTestServer(t, testKey)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[HealthzResponse](t, rr)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 5, resp.ComponentsLoaded)
	assert.Equal(t, len(catalog.Names()), resp.Channels)
}

func TestHealthzReportsDispatchCounters(t *testing.T) {
	s, _ := newTestServer(t, testKey)

	rr := do(t, s, http.MethodPost, "/tenants/acme/channels/"+catalog.RegisterPaymentProviders, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = do(t, s, http.MethodPost, "/tenants/acme/channels/"+catalog.RegisterPaymentProviders, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[HealthzResponse](t, rr)
	require.NotNil(t, resp.Dispatch)
	assert.Equal(t, uint64(2), resp.Dispatch.Sends)
	assert.Equal(t, uint64(4), resp.Dispatch.Invoked)
	assert.Positive(t, resp.Dispatch.OwnerCacheHits, "second send resolves owners from the cache")
	assert.Positive(t, resp.Dispatch.OwnersCached)
}

func TestSendReturnsChannelAggregate(t *testing.T) {
	s, h := newTestServer(t, testKey)
	require.NoError(t, h.Tenants.Enable(context.Background(), "acme", "plugbus.plugins.timerestriction"))

	rr := do(t, s, http.MethodPost, "/tenants/acme/channels/"+catalog.AvailabilityCheck,
		`{"item":{"id":"plain-ticket"},"variations":[{"id":"a"}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var avail struct {
		Handlers []string            `json:"handlers"`
		Result   []catalog.Variation `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &avail))
	assert.Equal(t, []string{"plugbus.plugins.timerestriction.signals"}, avail.Handlers)
	require.Len(t, avail.Result, 1)
	assert.True(t, avail.Result[0].Available, "an item without restrictions stays available")

	rr = do(t, s, http.MethodPost, "/tenants/acme/channels/"+catalog.RegisterPaymentProviders, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var providers struct {
		Result []catalog.PaymentProvider `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &providers))
	require.Len(t, providers.Result, 2)
	assert.Equal(t, "free", providers.Result[0].Identifier)
	assert.Equal(t, "stripe", providers.Result[1].Identifier)

	rr = do(t, s, http.MethodPost, "/tenants/acme/channels/"+catalog.OrderPaid, `{"order":{"code":"ABC12"}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), `"result"`)
}

func TestAuthMiddleware(t *testing.T) {
	s, _ := newTestServer(t, testKey)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"blank key", "Bearer   ", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"valid key", "Bearer " + testKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/components", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			s.Handler().ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	s, _ := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/components", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestListComponentsAndChannels(t *testing.T) {
	s, _ := newTestServer(t, testKey)

	comps := decode[[]ComponentResponse](t, do(t, s, http.MethodGet, "/components", nil))
	byID := map[string]ComponentResponse{}
	for _, c := range comps {
		byID[c.ID] = c
	}
	require.Contains(t, byID, "plugbus.base")
	assert.True(t, byID["plugbus.base"].Core)
	assert.Equal(t, "builtin", byID["plugbus.plugins.stripe"].Source)
	assert.True(t, byID["plugbus.plugins.stripe"].Compatible)

	channels := decode[[]ChannelResponse](t, do(t, s, http.MethodGet, "/channels", nil))
	var providers *ChannelResponse
	for i := range channels {
		if channels[i].Name == catalog.RegisterPaymentProviders {
			providers = &channels[i]
		}
	}
	require.NotNil(t, providers)
	require.NotEmpty(t, providers.Handlers)
	assert.Equal(t, "plugbus.base", providers.Handlers[0].Owner)
}

func TestTenantLifecycle(t *testing.T) {
	s, _ := newTestServer(t, testKey)

	rr := do(t, s, http.MethodGet, "/tenants/beta", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, s, http.MethodPut, "/tenants/beta", PutTenantRequest{Name: "Beta Shop"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	created := decode[TenantResponse](t, rr)
	assert.Equal(t, "Beta Shop", created.Name)
	assert.Empty(t, created.Components)

	rr = do(t, s, http.MethodPut, "/tenants/beta/components/plugbus.plugins.statistics", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []string{"plugbus.plugins.statistics"}, decode[TenantResponse](t, rr).Components)

	rr = do(t, s, http.MethodDelete, "/tenants/beta/components/plugbus.plugins.statistics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[TenantResponse](t, rr).Components)

	rr = do(t, s, http.MethodPut, "/tenants/beta/components/acme.unknown", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, s, http.MethodPut, "/tenants/beta/components/plugbus.base", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	list := decode[[]TenantResponse](t, do(t, s, http.MethodGet, "/tenants", nil))
	require.Len(t, list, 2)
	assert.Equal(t, "acme", list[0].ID)
	assert.Equal(t, []string{"plugbus.plugins.stripe"}, list[0].Components)
}

func TestSendChannel(t *testing.T) {
	s, h := newTestServer(t, testKey)

	rr := do(t, s, http.MethodPost, "/tenants/acme/channels/"+catalog.RegisterPaymentProviders, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[SendResponse](t, rr)
	assert.Equal(t, []string{"plugbus.base.signals", "plugbus.plugins.stripe.signals"}, resp.Handlers)
	require.Len(t, resp.Responses, 2)
	assert.Contains(t, string(resp.Responses[1]), `"identifier":"stripe"`)

	rr = do(t, s, http.MethodPost, "/tenants/acme/channels/"+catalog.OrderPaid, `{"order":{"code":"ABC12","total":1200}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, s, http.MethodPost, "/tenants/acme/channels/"+catalog.AvailabilityCheck, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodPost, "/tenants/acme/channels/"+catalog.OrderPaid, `{"order":{"code":"A"},"bogus":true}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodPost, "/tenants/ghost/channels/"+catalog.OrderPaid, `{"order":{"code":"A"}}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, s, http.MethodPost, "/tenants/acme/channels/nobody-listens", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[SendResponse](t, rr).Handlers)

	events := decode[EventsResponse](t, do(t, s, http.MethodGet, "/events?type="+dispatch.EventCompleted, nil))
	assert.Len(t, events.Events, 2)
	assert.Len(t, h.Events.SnapshotSince(0), 2)

	rr = do(t, s, http.MethodGet, "/events?since=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type failingSender struct{}

func (failingSender) SendJSON(context.Context, string, string, json.RawMessage) (dispatch.Result, error) {
	partial := dispatch.Result{{Handler: channel.Handler{ID: "first"}, Value: "ok"}}
	return partial, errors.New("second handler exploded")
}

func TestSendHandlerFailureReturnsPartialResult(t *testing.T) {
	h := newHost(t)
	deps := depsFor(h)
	deps.Sender = failingSender{}
	s := New(Config{}, deps, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rr := do(t, s, http.MethodPost, "/tenants/acme/channels/order-paid", nil)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	resp := decode[SendResponse](t, rr)
	assert.Equal(t, []string{"first"}, resp.Handlers)
	assert.Equal(t, "second handler exploded", resp.Error)
}

func TestRestrictions(t *testing.T) {
	s, _ := newTestServer(t, testKey)

	now := time.Now().UTC().Truncate(time.Second)
	price := int64(500)
	rr := do(t, s, http.MethodPost, "/tenants/acme/restrictions", RestrictionRequest{
		Item:  "ticket",
		From:  now,
		Until: now.Add(time.Hour),
		Price: &price,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, s, http.MethodPost, "/tenants/acme/restrictions", RestrictionRequest{
		Item:  "ticket",
		From:  now,
		Until: now.Add(-time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodGet, "/tenants/acme/restrictions?item=ticket", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, float64(500), list[0]["price"])

	rr = do(t, s, http.MethodGet, "/tenants/acme/restrictions", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOpenAPIDescribesChannels(t *testing.T) {
	s, _ := newTestServer(t, testKey)

	doc := decode[map[string]any](t, do(t, s, http.MethodGet, "/openapi.json", nil))
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	for _, name := range catalog.Names() {
		assert.Contains(t, paths, "/tenants/{tenantID}/channels/"+name)
	}
}

func TestEventStreamReplaysAndFollows(t *testing.T) {
	s, h := newTestServer(t, "")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, err := h.SendJSON(context.Background(), catalog.RegisterPaymentProviders, "acme", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() []string {
		var lines []string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			if line == "" {
				return lines
			}
			lines = append(lines, line)
		}
	}

	first := readEvent()
	require.GreaterOrEqual(t, len(first), 3)
	assert.Equal(t, "id: 1", first[0])
	assert.Equal(t, "event: "+dispatch.EventCompleted, first[1])

	_, err = h.SendJSON(context.Background(), catalog.OrderPlaced, "acme", json.RawMessage(`{"order":{"code":"Z9"}}`))
	require.NoError(t, err)

	second := readEvent()
	require.GreaterOrEqual(t, len(second), 3)
	assert.Equal(t, "id: 2", second[0])
	assert.Contains(t, second[2], catalog.OrderPlaced)
}

func TestParseLastEventID(t *testing.T) {
	assert.Equal(t, int64(0), parseLastEventID(""))
	assert.Equal(t, int64(0), parseLastEventID("-4"))
	assert.Equal(t, int64(0), parseLastEventID("abc"))
	assert.Equal(t, int64(42), parseLastEventID("42"))
}

func TestScopedTokens(t *testing.T) {
	h := newHost(t)
	s := New(Config{
		APIKey: testKey,
		Tokens: []auth.TokenConfig{
			{Token: "reader", Scopes: []string{auth.ScopeComponentsRO, auth.ScopeTenantsRO}},
			{Token: "shop", Scopes: []string{auth.ScopeDispatch}},
		},
	}, depsFor(h), slog.New(slog.NewTextHandler(io.Discard, nil)))

	call := func(token, method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, call("reader", http.MethodGet, "/components"))
	assert.Equal(t, http.StatusOK, call("reader", http.MethodGet, "/tenants/acme"))
	assert.Equal(t, http.StatusForbidden, call("reader", http.MethodPut, "/tenants/acme/components/plugbus.plugins.statistics"))
	assert.Equal(t, http.StatusForbidden, call("reader", http.MethodGet, "/events"))
	assert.Equal(t, http.StatusForbidden, call("reader", http.MethodPost, "/tenants/acme/channels/"+catalog.RegisterPaymentProviders))

	assert.Equal(t, http.StatusOK, call("shop", http.MethodPost, "/tenants/acme/channels/"+catalog.RegisterPaymentProviders))
	assert.Equal(t, http.StatusForbidden, call("shop", http.MethodGet, "/tenants"))

	assert.Equal(t, http.StatusOK, call(testKey, http.MethodGet, "/events"))
	assert.Equal(t, http.StatusUnauthorized, call("guess", http.MethodGet, "/components"))
}
