package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/plugbus/internal/channel"
	"github.com/mattjoyce/plugbus/internal/dispatch"
)

func respond(values ...any) dispatch.Result {
	res := make(dispatch.Result, len(values))
	for i, v := range values {
		res[i] = dispatch.Response{Handler: channel.Handler{ID: "h" + string(rune('1'+i))}, Value: v}
	}
	return res
}

func price(p int64) *int64 { return &p }

func TestDefineCatalog(t *testing.T) {
	reg := channel.NewRegistry()
	Define(reg)

	var names []string
	for _, ch := range reg.Channels() {
		names = append(names, ch.Name)
		assert.NotEmpty(t, ch.Description)
		assert.Zero(t, ch.Len())
	}
	assert.ElementsMatch(t, Names(), names)

	ch, ok := reg.Lookup(OrderPaid)
	require.True(t, ok)
	assert.Equal(t, []string{"order"}, ch.PayloadFields)
}

func TestCollectFlattensDescriptors(t *testing.T) {
	res := respond(
		PaymentProvider{Identifier: "free"},
		nil,
		[]PaymentProvider{{Identifier: "stripe"}, {Identifier: "banktransfer"}},
		&PaymentProvider{Identifier: "paypal"},
	)

	got, err := Collect[PaymentProvider](res)
	require.NoError(t, err)

	var ids []string
	for _, p := range got {
		ids = append(ids, p.Identifier)
	}
	assert.Equal(t, []string{"free", "stripe", "banktransfer", "paypal"}, ids)
}

func TestCollectRejectsWrongType(t *testing.T) {
	_, err := Collect[TicketOutput](respond(TicketOutput{Identifier: "pdf"}, "oops"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "h2")
}

func TestAvailableIsLogicalAnd(t *testing.T) {
	requested := []Variation{{ID: "s"}, {ID: "m"}, {ID: "l"}}

	res := respond(
		[]Variation{{ID: "s", Available: true}, {ID: "m", Available: false}, {ID: "l", Available: true, Price: price(900)}},
		[]Variation{{ID: "s", Available: true, Price: price(1200)}, {ID: "m", Available: true}},
		nil,
	)

	got, err := Available(requested, res)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.True(t, got[0].Available)
	assert.Equal(t, int64(1200), *got[0].Price)
	assert.False(t, got[1].Available)
	assert.True(t, got[2].Available, "a handler that omits a variation does not restrict it")
	assert.Equal(t, int64(900), *got[2].Price)

	assert.False(t, requested[1].Available, "request must not be modified")
}

func TestAvailableLowestPriceWins(t *testing.T) {
	got, err := Available([]Variation{{}}, respond(
		[]Variation{{Available: true, Price: price(500)}},
		[]Variation{{Available: true, Price: price(300)}},
	))
	require.NoError(t, err)
	assert.Equal(t, int64(300), *got[0].Price)
}

func TestAvailableWithNoHandlers(t *testing.T) {
	got, err := Available([]Variation{{ID: "a"}}, nil)
	require.NoError(t, err)
	assert.True(t, got[0].Available)
	assert.Nil(t, got[0].Price)
}

func TestAvailableRejectsWrongType(t *testing.T) {
	_, err := Available([]Variation{{ID: "a"}}, respond(true))
	assert.Error(t, err)
}
