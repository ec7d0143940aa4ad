package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"Bearer   spaced  ", "spaced", false},
		{"", "", true},
		{"Basic abc", "", true},
		{"Bearer   ", "", true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, err := ExtractBearerToken(req)
		if tt.wantErr {
			assert.Error(t, err, tt.header)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestAuthenticate(t *testing.T) {
	tokens := []TokenConfig{
		{Token: "reader", Scopes: []string{ScopeComponentsRO, " ", ScopeEventsRO}},
		{Token: "operator", Scopes: []string{ScopeTenantsRW, ScopeDispatch}},
	}

	p, ok := Authenticate("admin-key", "admin-key", tokens)
	require.True(t, ok)
	assert.True(t, HasAnyScope(p, ScopeDispatch))

	p, ok = Authenticate("reader", "admin-key", tokens)
	require.True(t, ok)
	assert.True(t, HasAnyScope(p, ScopeEventsRO))
	assert.False(t, HasAnyScope(p, ScopeTenantsRO))
	assert.Len(t, p.Scopes, 2)

	p, ok = Authenticate("operator", "admin-key", tokens)
	require.True(t, ok)
	assert.True(t, HasAnyScope(p, ScopeTenantsRO), "rw implies ro")
	assert.False(t, HasAnyScope(p, ScopeEventsRO))

	_, ok = Authenticate("nope", "admin-key", tokens)
	assert.False(t, ok)
	_, ok = Authenticate("", "", nil)
	assert.False(t, ok, "empty key never matches")
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Admin())
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.True(t, HasAnyScope(p, ScopeTenantsRW))
	assert.True(t, HasAnyScope(p))
}
