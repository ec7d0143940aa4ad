package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/mattjoyce/plugbus/internal/catalog"
	"github.com/mattjoyce/plugbus/internal/channel"
	"github.com/mattjoyce/plugbus/internal/config"
	"github.com/mattjoyce/plugbus/internal/dispatch"
)

// mockSender is a func-field Sender for tests.
type mockSender struct {
	sendFn func(ctx context.Context, channelName, tenantID string, payload json.RawMessage) (dispatch.Result, error)
	calls  int
}

func (m *mockSender) SendJSON(ctx context.Context, channelName, tenantID string, payload json.RawMessage) (dispatch.Result, error) {
	m.calls++
	if m.sendFn != nil {
		return m.sendFn(ctx, channelName, tenantID, payload)
	}
	return dispatch.Result{{Handler: channel.Handler{ID: "plugbus.base.signals"}}}, nil
}

const testSecret = "test-secret"

func newTestServer(sender Sender, maxBody int64) *Server {
	cfg := Config{
		Listen: "127.0.0.1:0",
		Endpoints: []EndpointConfig{{
			Path:            "/hooks/acme/paid",
			Tenant:          "acme",
			Channel:         catalog.OrderPaid,
			Secret:          testSecret,
			SignatureHeader: "X-Signature",
			MaxBodySize:     maxBody,
		}},
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(cfg, sender, logger)
}

func post(s *Server, path string, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleWebhook_ValidSignature(t *testing.T) {
	body := []byte(`{"order":{"code":"ABC12"}}`)
	ms := &mockSender{
		sendFn: func(_ context.Context, channelName, tenantID string, payload json.RawMessage) (dispatch.Result, error) {
			if channelName != catalog.OrderPaid || tenantID != "acme" {
				t.Errorf("sent to %s/%s", tenantID, channelName)
			}
			if string(payload) != string(body) {
				t.Errorf("payload = %s", payload)
			}
			return dispatch.Result{
				{Handler: channel.Handler{ID: "plugbus.base.signals"}},
				{Handler: channel.Handler{ID: "plugbus.plugins.statistics.signals"}},
			}, nil
		},
	}
	s := newTestServer(ms, 0)

	rec := post(s, "/hooks/acme/paid", body, Sign(body, testSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp DispatchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Handlers) != 2 || resp.Tenant != "acme" || resp.Channel != catalog.OrderPaid {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandleWebhook_Rejections(t *testing.T) {
	body := []byte(`{"order":{"code":"ABC12"}}`)

	tests := []struct {
		name      string
		path      string
		body      []byte
		signature string
		maxBody   int64
		want      int
	}{
		{"missing signature", "/hooks/acme/paid", body, "", 0, http.StatusForbidden},
		{"invalid signature", "/hooks/acme/paid", body, "sha256=" + strings.Repeat("0", 64), 0, http.StatusForbidden},
		{"signed with other secret", "/hooks/acme/paid", body, Sign(body, "other"), 0, http.StatusForbidden},
		{"body too large", "/hooks/acme/paid", body, Sign(body, testSecret), 8, http.StatusRequestEntityTooLarge},
		{"unknown path", "/hooks/other", body, Sign(body, testSecret), 0, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := &mockSender{}
			s := newTestServer(ms, tt.maxBody)
			rec := post(s, tt.path, tt.body, tt.signature)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if ms.calls != 0 {
				t.Fatal("sender must not be called for rejected requests")
			}
			if tt.want == http.StatusForbidden && !strings.Contains(rec.Body.String(), `"forbidden"`) {
				t.Fatalf("forbidden response leaks detail: %s", rec.Body.String())
			}
		})
	}
}

func TestHandleWebhook_DispatchErrors(t *testing.T) {
	body := []byte(`{"order":{}}`)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid payload", fmt.Errorf("order-paid: %w: order.code is required", catalog.ErrInvalidPayload), http.StatusBadRequest},
		{"handler failure", errors.New("statistics exploded"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := &mockSender{
				sendFn: func(context.Context, string, string, json.RawMessage) (dispatch.Result, error) {
					return nil, tt.err
				},
			}
			s := newTestServer(ms, 0)
			rec := post(s, "/hooks/acme/paid", body, Sign(body, testSecret))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusBadGateway && strings.Contains(rec.Body.String(), "exploded") {
				t.Fatalf("handler error leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestFromGlobalConfig(t *testing.T) {
	cfg, err := FromGlobalConfig(&config.WebhooksConfig{
		Listen: "127.0.0.1:8081",
		Endpoints: []config.WebhookEndpointConfig{{
			Path:            "/hooks/acme",
			Tenant:          "acme",
			Channel:         catalog.OrderPlaced,
			Secret:          "s",
			SignatureHeader: "X-Signature",
			MaxBodySize:     "1KB",
		}},
	})
	if err != nil {
		t.Fatalf("FromGlobalConfig: %v", err)
	}
	if cfg.Endpoints[0].MaxBodySize != 1024 || cfg.Endpoints[0].Channel != catalog.OrderPlaced {
		t.Fatalf("unexpected endpoint: %+v", cfg.Endpoints[0])
	}

	if _, err := FromGlobalConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromGlobalConfig(&config.WebhooksConfig{Endpoints: []config.WebhookEndpointConfig{{Path: "/x"}}}); err == nil {
		t.Fatal("expected error for missing secret")
	}
}
