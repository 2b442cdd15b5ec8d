// Package normalize turns untrusted upstream pool rows into validated
// NormalizedPool values, coercing field types defensively.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/lp-apy/internal/model"
)

// ValidationError marks a raw record as unreportable. It is fatal for the
// one record only; callers skip the record and keep processing.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid pool record: %s %s", e.Field, e.Reason)
}

// Upstream field names, with accepted fallbacks for the identifier and
// the numeric fields. The yields API calls the identifier "pool".
var (
	idFields     = []string{"pool", "id", "poolId"}
	apyFields    = []string{"apy", "apyBase"}
	volumeFields = []string{"volumeUsd7d", "volumeUsd1d"}
)

// Normalize validates and coerces one raw pool record. A missing or empty
// identifier is the only fatal condition; every other anomaly degrades to
// a nil field. thinThreshold is the minimum TVL in USD below which the
// pool is flagged as thin.
func Normalize(raw model.RawPoolRecord, thinThreshold float64) (model.NormalizedPool, error) {
	id := firstString(raw, idFields)
	if id == "" {
		return model.NormalizedPool{}, &ValidationError{Field: "pool", Reason: "identifier missing or empty"}
	}

	pool := model.NormalizedPool{
		ID:          id,
		Chain:       stringField(raw, "chain"),
		Project:     stringField(raw, "project"),
		Symbol:      stringField(raw, "symbol"),
		TVL:         numberField(raw, id, "tvlUsd"),
		ReportedAPY: firstNumber(raw, id, apyFields),
		Volume:      firstNumber(raw, id, volumeFields),
		Outlier:     boolField(raw, "outlier"),
	}

	pool.IsThin = pool.TVL != nil && *pool.TVL < thinThreshold

	return pool, nil
}

// NormalizeAll runs Normalize over a snapshot, skipping records that fail
// validation. It returns the normalized pools and the number skipped.
func NormalizeAll(raws []model.RawPoolRecord, thinThreshold float64) ([]model.NormalizedPool, int) {
	pools := make([]model.NormalizedPool, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		pool, err := Normalize(raw, thinThreshold)
		if err != nil {
			skipped++
			logrus.WithError(err).Debug("Skipped unidentifiable pool record")
			continue
		}
		pools = append(pools, pool)
	}
	return pools, skipped
}

// firstString returns the first non-empty string among the given fields.
func firstString(raw model.RawPoolRecord, fields []string) string {
	for _, f := range fields {
		if s := stringField(raw, f); s != "" {
			return s
		}
	}
	return ""
}

// stringField coerces a metadata field to a trimmed string. Non-string
// values are treated as absent rather than stringified.
func stringField(raw model.RawPoolRecord, field string) string {
	v, ok := raw[field]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// firstNumber returns the first present-and-valid number among the fields.
func firstNumber(raw model.RawPoolRecord, id string, fields []string) *float64 {
	for _, f := range fields {
		if v := numberField(raw, id, f); v != nil {
			return v
		}
	}
	return nil
}

// numberField coerces one numeric field. Missing, non-numeric, negative,
// NaN and infinite values all become nil. Coercing to zero instead would
// fabricate data, so it is never done.
func numberField(raw model.RawPoolRecord, id, field string) *float64 {
	v, ok := raw[field]
	if !ok || v == nil {
		return nil
	}

	f, ok := toFloat(v)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"pool":  id,
			"field": field,
			"value": v,
		}).Debug("Dropped non-numeric field value")
		return nil
	}

	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		logrus.WithFields(logrus.Fields{
			"pool":  id,
			"field": field,
			"value": f,
		}).Debug("Dropped out-of-range field value")
		return nil
	}

	return model.Float(f)
}

// boolField coerces an upstream flag that arrives as a bool or as the
// strings "true"/"false". Anything else counts as absent.
func boolField(raw model.RawPoolRecord, field string) *bool {
	v, ok := raw[field]
	if !ok || v == nil {
		return nil
	}

	switch b := v.(type) {
	case bool:
		flag := b
		return &flag
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true":
			flag := true
			return &flag
		case "false":
			flag := false
			return &flag
		}
	}
	return nil
}

// toFloat converts the value types a decoded JSON payload can carry.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
