package catalog

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayloadAvailability(t *testing.T) {
	v, err := DecodePayload(AvailabilityCheck, json.RawMessage(`{"item":{"id":"ticket"},"variations":[{"id":"adult"},{"id":"child"}]}`))
	require.NoError(t, err)

	req, ok := v.(*AvailabilityRequest)
	require.True(t, ok, "got %T", v)
	assert.Equal(t, "ticket", req.Item.ID)
	assert.Len(t, req.Variations, 2)
	assert.Nil(t, req.Cache)
}

func TestDecodePayloadAvailabilityWithoutVariations(t *testing.T) {
	v, err := DecodePayload(AvailabilityCheck, json.RawMessage(`{"item":{"id":"ticket"}}`))
	require.NoError(t, err)

	req := v.(*AvailabilityRequest)
	require.Len(t, req.Variations, 1)
	assert.True(t, req.Variations[0].Empty())
}

func TestDecodePayloadOrder(t *testing.T) {
	v, err := DecodePayload(OrderPaid, json.RawMessage(`{"order":{"code":"ABC12","status":"p","total":1500}}`))
	require.NoError(t, err)

	ev, ok := v.(OrderEvent)
	require.True(t, ok)
	assert.Equal(t, "ABC12", ev.Order.Code)
	assert.Equal(t, int64(1500), ev.Order.Total)
}

func TestDecodePayloadErrors(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		raw     string
	}{
		{"availability without payload", AvailabilityCheck, ""},
		{"order null payload", OrderPlaced, "null"},
		{"order without code", OrderPlaced, `{"order":{}}`},
		{"unknown field", OrderPaid, `{"order":{"code":"A"},"extra":1}`},
		{"malformed json", "custom-channel", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayload(tt.channel, json.RawMessage(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrPayloadRequired) || errors.Is(err, ErrInvalidPayload), "unexpected error: %v", err)
		})
	}
	_, err := DecodePayload(OrderPaid, nil)
	assert.ErrorIs(t, err, ErrPayloadRequired)
}

func TestDecodePayloadRegistrationIgnoresBody(t *testing.T) {
	v, err := DecodePayload(RegisterPaymentProviders, json.RawMessage(`{"ignored":true}`))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDecodePayloadCustomChannel(t *testing.T) {
	v, err := DecodePayload("acme-ping", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": float64(1)}, v)

	v, err = DecodePayload("acme-ping", nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}
