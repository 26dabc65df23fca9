package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopstream/internal/constants"
)

type testPayload struct {
	OrderID string `json:"orderId"`
	Total   int64  `json:"total"`
}

func TestNew_PopulatesEnvelope(t *testing.T) {
	env, err := New("org.shopstream.checkout.OrderCompleted", "checkout-service", "CART:c-1", testPayload{OrderID: "o-1", Total: 4200})
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "org.shopstream.checkout.OrderCompleted", env.Type)
	assert.Equal(t, "checkout-service", env.Source)
	assert.Equal(t, "CART:c-1", env.Subject)
	assert.Equal(t, constants.ContentTypeJSON, env.DataContentType)
	assert.False(t, env.Time.IsZero())
	assert.JSONEq(t, `{"orderId":"o-1","total":4200}`, string(env.Data))
}

func TestNew_DistinctIDs(t *testing.T) {
	first, err := New("a.b.C", "svc", "", testPayload{})
	require.NoError(t, err)
	second, err := New("a.b.C", "svc", "", testPayload{})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestEnvelope_MarshalUnmarshal(t *testing.T) {
	env, err := New("a.b.C", "svc", "SUBJECT:1", testPayload{OrderID: "o-2", Total: 99})
	require.NoError(t, err)

	raw, err := env.Marshal()
	require.NoError(t, err)

	decoded, err := Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, env.ID, decoded.ID)
	assert.Equal(t, env.Type, decoded.Type)
	assert.Equal(t, env.Subject, decoded.Subject)

	var payload testPayload
	require.NoError(t, decoded.DecodeData(&payload))
	assert.Equal(t, "o-2", payload.OrderID)
	assert.Equal(t, int64(99), payload.Total)
}

func TestUnmarshal_MalformedJSON(t *testing.T) {
	_, err := Unmarshal([]byte("{not json"))
	require.Error(t, err)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.True(t, decodeErr.IsFatal())
}

func TestUnmarshal_MissingID(t *testing.T) {
	_, err := Unmarshal([]byte(`{"type":"a.b.C","source":"svc"}`))
	require.Error(t, err)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Contains(t, decodeErr.Error(), "missing id")
}

func TestUnmarshal_MissingType(t *testing.T) {
	_, err := Unmarshal([]byte(`{"id":"e-1","source":"svc"}`))
	require.Error(t, err)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Contains(t, decodeErr.Error(), "missing type")
}

func TestDecodeData_NoData(t *testing.T) {
	env := Envelope{ID: "e-1", Type: "a.b.C"}

	var payload testPayload
	err := env.DecodeData(&payload)
	require.Error(t, err)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.True(t, decodeErr.IsFatal())
}

func TestDecodeData_ShapeMismatch(t *testing.T) {
	env := Envelope{ID: "e-1", Type: "a.b.C", Data: []byte(`{"orderId":["not","a","string"]}`)}

	var payload testPayload
	err := env.DecodeData(&payload)
	require.Error(t, err)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.True(t, decodeErr.IsFatal())
}
