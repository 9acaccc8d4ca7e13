package models

import "encoding/json"

// Trigger identifies what caused a sync run to be requested.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerPush   Trigger = "push"
	TriggerTimer  Trigger = "timer"
)

// RawRecord is a paid quote exactly as the remote quote service returned it.
// Known fields are decoded into typed members; every unknown or mis-typed
// field is preserved verbatim in Extra so it can be forwarded downstream
// untouched.
type RawRecord struct {
	ID        string
	Namespace string
	Amount    float64
	ExpiresAt int64
	PaidAt    int64
	Request   string
	Extra     map[string]interface{}
}

// UnmarshalJSON decodes the known fields when they carry the expected type
// and shunts everything else into Extra. A wrong-typed known field therefore
// leaves the typed member at its zero value, which the validation layer
// reports as a shape error.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*r = RawRecord{}
	for key, value := range fields {
		switch key {
		case "id":
			if s, ok := value.(string); ok {
				r.ID = s
				continue
			}
		case "namespace":
			if s, ok := value.(string); ok {
				r.Namespace = s
				continue
			}
		case "amount":
			if f, ok := value.(float64); ok {
				r.Amount = f
				continue
			}
		case "expiresAt":
			if f, ok := value.(float64); ok {
				r.ExpiresAt = int64(f)
				continue
			}
		case "paidAt":
			if f, ok := value.(float64); ok {
				r.PaidAt = int64(f)
				continue
			}
		case "request":
			if s, ok := value.(string); ok {
				r.Request = s
				continue
			}
		}
		if r.Extra == nil {
			r.Extra = make(map[string]interface{})
		}
		r.Extra[key] = value
	}
	return nil
}

// MarshalJSON reassembles the wire shape, used mainly when logging dropped
// records. Extra keys win for fields that failed type dispatch on the way in.
func (r RawRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Extra)+6)
	if r.ID != "" {
		out["id"] = r.ID
	}
	if r.Namespace != "" {
		out["namespace"] = r.Namespace
	}
	if r.Amount != 0 {
		out["amount"] = r.Amount
	}
	if r.ExpiresAt != 0 {
		out["expiresAt"] = r.ExpiresAt
	}
	if r.PaidAt != 0 {
		out["paidAt"] = r.PaidAt
	}
	if r.Request != "" {
		out["request"] = r.Request
	}
	for key, value := range r.Extra {
		out[key] = value
	}
	return json.Marshal(out)
}

// TransformedRecord is the shape the downstream ledger ingests: the raw
// quote normalized to the ingestion contract, with the opaque extras merged
// back in at marshal time.
type TransformedRecord struct {
	Identifier string
	Namespace  string
	Amount     float64
	Unit       string
	State      string
	Expiry     int64
	PaidAt     int64
	Request    string
	Extra      map[string]interface{}
}

// MarshalJSON emits the ingestion contract fields plus the passthrough
// extras. Contract fields win on key collisions.
func (t TransformedRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(t.Extra)+8)
	for key, value := range t.Extra {
		out[key] = value
	}
	out["identifier"] = t.Identifier
	out["namespace"] = t.Namespace
	out["amount"] = t.Amount
	out["unit"] = t.Unit
	out["state"] = t.State
	out["expiry"] = t.Expiry
	out["paidAt"] = t.PaidAt
	out["request"] = t.Request
	return json.Marshal(out)
}

// Status is a point-in-time snapshot of the sync runner.
type Status struct {
	IsInitialized   bool `json:"is_initialized"`
	IsReady         bool `json:"is_ready"`
	IsSyncing       bool `json:"is_syncing"`
	IsPushConnected bool `json:"is_push_connected"`
}
