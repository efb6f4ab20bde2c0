package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEnvelope(t *testing.T) {
	body, err := encode(RKStockReceived, StockReceived{BookID: 7, Qty: 3, StockQty: 10})
	require.NoError(t, err)

	var got struct {
		Type    string        `json:"type"`
		Payload StockReceived `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "stock.received", got.Type)
	assert.Equal(t, StockReceived{BookID: 7, Qty: 3, StockQty: 10}, got.Payload)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), RKOrderCreated, OrderCreated{}))
}

func TestDispatch(t *testing.T) {
	body, err := encode(RKOrderCreated, OrderCreated{OrderID: 4, Items: []OrderItemEvt{{BookID: 2, Qty: 1}}})
	require.NoError(t, err)

	var got OrderCreated
	err = dispatch(context.Background(), body, func(_ context.Context, d Delivery) error {
		assert.Equal(t, RKOrderCreated, d.Type)
		assert.False(t, d.Timestamp.IsZero())
		return json.Unmarshal(d.Payload, &got)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.OrderID)
	require.Len(t, got.Items, 1)

	err = dispatch(context.Background(), []byte("{nope"), func(context.Context, Delivery) error { return nil })
	assert.Error(t, err)
}
