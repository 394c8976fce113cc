package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/evanschultz/boardsync/internal/domain"
)

// DecodeFieldValue turns a raw JSON field value into the Go type
// domain.NormalizeFieldValue expects. Classifying fields map null to the
// blank (Unmapped) id, dates are RFC3339 strings or null, estimation is whole
// minutes and progress is 0..100.
func DecodeFieldValue(field domain.Field, raw json.RawMessage) (any, error) {
	null := len(raw) == 0 || string(raw) == "null"
	switch field {
	case domain.FieldName, domain.FieldDescription, domain.FieldStatus, domain.FieldPriority, domain.FieldPhase:
		if null {
			if field == domain.FieldName {
				return nil, fmt.Errorf("%w: name is null", domain.ErrInvalidFieldValue)
			}
			return "", nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidFieldValue, field, err)
		}
		return s, nil
	case domain.FieldStartDate, domain.FieldEndDate:
		if null {
			return nil, nil
		}
		var ts time.Time
		if err := json.Unmarshal(raw, &ts); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidFieldValue, field, err)
		}
		return ts, nil
	case domain.FieldEstimation, domain.FieldProgress:
		if null {
			return 0, nil
		}
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidFieldValue, field, err)
		}
		return n, nil
	case domain.FieldLabels, domain.FieldAssignees:
		if null {
			return []string{}, nil
		}
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidFieldValue, field, err)
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidField, field)
	}
}

// EncodeFieldValue is the inverse of DecodeFieldValue for normalized values.
func EncodeFieldValue(field domain.Field, value any) (json.RawMessage, error) {
	normalized, err := domain.NormalizeFieldValue(field, value)
	if err != nil {
		return nil, err
	}
	var out any = normalized
	switch v := normalized.(type) {
	case string:
		if field.Classifying() && v == "" {
			out = nil
		}
	case *time.Time:
		if v == nil {
			out = nil
		} else {
			out = v.Format(time.RFC3339)
		}
	case time.Duration:
		out = int(v / time.Minute)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode %s value: %w", field, err)
	}
	return raw, nil
}
