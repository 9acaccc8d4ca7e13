package records

import (
	"fmt"
	"net/url"

	"github.com/quotesync/quote-sync-service/internal/models"
)

// Labels required by the downstream ingestion contract.
const (
	UnitSat   = "sat"
	StatePaid = "paid"
)

// ValidateShape checks that the required fields survived decoding with the
// expected types: id and namespace as non-empty strings, paidAt as a
// positive number.
func ValidateShape(raw models.RawRecord) error {
	if raw.ID == "" {
		return fmt.Errorf("missing or malformed id")
	}
	if raw.Namespace == "" {
		return fmt.Errorf("missing or malformed namespace")
	}
	if raw.PaidAt <= 0 {
		return fmt.Errorf("missing or malformed paidAt")
	}
	return nil
}

// ValidateNamespace checks that the namespace key is a well-formed absolute
// URL. Shape validation must have passed already.
func ValidateNamespace(raw models.RawRecord) error {
	u, err := url.ParseRequestURI(raw.Namespace)
	if err != nil {
		return fmt.Errorf("namespace is not a valid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("namespace is not an absolute URL: %q", raw.Namespace)
	}
	return nil
}

// Transform maps a validated raw quote into the downstream ingestion shape.
// The request field defaults to the empty string when the source omitted it.
func Transform(raw models.RawRecord) models.TransformedRecord {
	return models.TransformedRecord{
		Identifier: raw.ID,
		Namespace:  raw.Namespace,
		Amount:     raw.Amount,
		Unit:       UnitSat,
		State:      StatePaid,
		Expiry:     raw.ExpiresAt,
		PaidAt:     raw.PaidAt,
		Request:    raw.Request,
		Extra:      raw.Extra,
	}
}

// Group is one namespace's slice of records, in the order they arrived.
type Group struct {
	Key     string
	Records []models.RawRecord
}

// GroupByNamespace partitions records by namespace key. Groups appear in
// first-seen order and records keep their order within each group; no
// ordering is defined across groups.
func GroupByNamespace(recs []models.RawRecord) []Group {
	index := make(map[string]int, len(recs))
	var groups []Group
	for _, rec := range recs {
		i, ok := index[rec.Namespace]
		if !ok {
			i = len(groups)
			index[rec.Namespace] = i
			groups = append(groups, Group{Key: rec.Namespace})
		}
		groups[i].Records = append(groups[i].Records, rec)
	}
	return groups
}
