package channel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/plugbus/internal/tenant"
)

func noop(context.Context, *Channel, *tenant.Context, any) (any, error) { return nil, nil }

func TestDefineIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := r.Define("order-paid", WithDescription("first"))
	b := r.Define("order-paid", WithDescription("second"))

	assert.Same(t, a, b)
	assert.Equal(t, "first", b.Description)
}

func TestRegisterPreservesOrderAndDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("order-paid", "a.signals", noop))
	require.NoError(t, r.Register("order-paid", "b.signals", noop))
	require.NoError(t, r.Register("order-paid", "a.signals", noop))

	var origins []string
	for _, h := range r.HandlersOf("order-paid") {
		origins = append(origins, h.Origin)
	}
	assert.Equal(t, []string{"a.signals", "b.signals", "a.signals"}, origins)
}

func TestRegisterDefaultsIDToOrigin(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("x", "a.signals", noop))
	require.NoError(t, r.Register("x", "b.signals", noop, WithID("b.custom")))

	hs := r.HandlersOf("x")
	require.Len(t, hs, 2)
	assert.Equal(t, "a.signals", hs[0].ID)
	assert.Equal(t, "b.custom", hs[1].ID)
}

func TestRegisterHandlerRejectsInvalid(t *testing.T) {
	r := NewRegistry()
	ch := r.Define("x")

	assert.ErrorIs(t, r.RegisterHandler(ch, Handler{Origin: " ", Callback: noop}), ErrEmptyOrigin)
	assert.ErrorIs(t, r.RegisterHandler(ch, Handler{Origin: "a"}), ErrNilCallback)
	assert.Error(t, r.RegisterHandler(nil, Handler{Origin: "a", Callback: noop}))
	assert.Equal(t, 0, ch.Len())
}

func TestHandlersOfUndefinedChannel(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.HandlersOf("nope"))
	_, ok := r.Lookup("nope")
	assert.False(t, ok)
}

func TestHandlersViewCannotGrowRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("x", "a", noop))

	view := r.HandlersOf("x")
	_ = append(view, Handler{Origin: "rogue", Callback: noop})

	assert.Len(t, r.HandlersOf("x"), 1)
}

func TestChannelsSorted(t *testing.T) {
	r := NewRegistry()
	r.Define("b")
	r.Define("a", WithPayloadFields("order"))

	chs := r.Channels()
	require.Len(t, chs, 2)
	assert.Equal(t, "a", chs[0].Name)
	assert.Equal(t, []string{"order"}, chs[0].PayloadFields)
}
