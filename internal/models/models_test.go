package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawRecord_UnmarshalJSON(t *testing.T) {
	payload := `{
		"id": "q-1",
		"namespace": "https://alpha.example/feed",
		"amount": 1500,
		"expiresAt": 2000,
		"paidAt": 1800,
		"request": "lnbc...",
		"memo": "tip",
		"payer": {"node": "abc"}
	}`

	var rec RawRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))

	assert.Equal(t, "q-1", rec.ID)
	assert.Equal(t, "https://alpha.example/feed", rec.Namespace)
	assert.Equal(t, float64(1500), rec.Amount)
	assert.Equal(t, int64(2000), rec.ExpiresAt)
	assert.Equal(t, int64(1800), rec.PaidAt)
	assert.Equal(t, "lnbc...", rec.Request)
	assert.Equal(t, "tip", rec.Extra["memo"])
	assert.Equal(t, map[string]interface{}{"node": "abc"}, rec.Extra["payer"])
}

func TestRawRecord_UnmarshalJSON_MistypedFields(t *testing.T) {
	// A numeric id and a string paidAt fail type dispatch: the typed members
	// stay zero (so shape validation rejects the record) while the original
	// values survive in Extra.
	payload := `{"id": 7, "namespace": "https://alpha.example", "paidAt": "soon"}`

	var rec RawRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))

	assert.Empty(t, rec.ID)
	assert.Zero(t, rec.PaidAt)
	assert.Equal(t, "https://alpha.example", rec.Namespace)
	assert.Equal(t, float64(7), rec.Extra["id"])
	assert.Equal(t, "soon", rec.Extra["paidAt"])
}

func TestTransformedRecord_MarshalJSON(t *testing.T) {
	rec := TransformedRecord{
		Identifier: "q-1",
		Namespace:  "https://alpha.example/feed",
		Amount:     1500,
		Unit:       "sat",
		State:      "paid",
		Expiry:     2000,
		PaidAt:     1800,
		Extra: map[string]interface{}{
			"memo":  "tip",
			"state": "should lose to the contract field",
		},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "q-1", out["identifier"])
	assert.Equal(t, "paid", out["state"], "contract fields win over extras")
	assert.Equal(t, "sat", out["unit"])
	assert.Equal(t, "", out["request"], "request is always present")
	assert.Equal(t, "tip", out["memo"], "extras pass through")
}
