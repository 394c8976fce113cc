package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Field names one editable task attribute.
type Field string

const (
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldStatus      Field = "status"
	FieldPriority    Field = "priority"
	FieldPhase       Field = "phase"
	FieldStartDate   Field = "start_date"
	FieldEndDate     Field = "end_date"
	FieldEstimation  Field = "estimation"
	FieldProgress    Field = "progress"
	FieldLabels      Field = "labels"
	FieldAssignees   Field = "assignees"
)

var validFields = []Field{
	FieldName,
	FieldDescription,
	FieldStatus,
	FieldPriority,
	FieldPhase,
	FieldStartDate,
	FieldEndDate,
	FieldEstimation,
	FieldProgress,
	FieldLabels,
	FieldAssignees,
}

// Fields returns every editable field in canonical order.
func Fields() []Field {
	return slices.Clone(validFields)
}

// ParseField normalizes a raw field name.
func ParseField(raw string) (Field, error) {
	field := Field(strings.TrimSpace(strings.ToLower(raw)))
	if !slices.Contains(validFields, field) {
		return "", fmt.Errorf("%w: %q", ErrInvalidField, raw)
	}
	return field, nil
}

// Classifying reports whether f decides group membership in some mode.
func (f Field) Classifying() bool {
	return f == FieldStatus || f == FieldPriority || f == FieldPhase
}

// Collection reports whether f holds an id list.
func (f Field) Collection() bool {
	return f == FieldLabels || f == FieldAssignees
}

// NormalizeFieldValue coerces value into the canonical Go type for field:
// string for text and classifying fields, *time.Time for dates,
// time.Duration for estimation, int for progress and []string for id lists.
func NormalizeFieldValue(field Field, value any) (any, error) {
	switch field {
	case FieldName:
		s, ok := value.(string)
		if !ok {
			return nil, fieldValueErr(field, value)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, ErrInvalidName
		}
		return s, nil
	case FieldDescription, FieldStatus, FieldPriority, FieldPhase:
		s, ok := value.(string)
		if !ok {
			return nil, fieldValueErr(field, value)
		}
		return strings.TrimSpace(s), nil
	case FieldStartDate, FieldEndDate:
		switch v := value.(type) {
		case nil:
			return (*time.Time)(nil), nil
		case *time.Time:
			return normalizeDate(v), nil
		case time.Time:
			return normalizeDate(&v), nil
		default:
			return nil, fieldValueErr(field, value)
		}
	case FieldEstimation:
		switch v := value.(type) {
		case time.Duration:
			if v < 0 {
				return nil, fieldValueErr(field, value)
			}
			return v, nil
		case int:
			if v < 0 {
				return nil, fieldValueErr(field, value)
			}
			return time.Duration(v) * time.Minute, nil
		default:
			return nil, fieldValueErr(field, value)
		}
	case FieldProgress:
		v, ok := value.(int)
		if !ok || v < 0 || v > 100 {
			return nil, fieldValueErr(field, value)
		}
		return v, nil
	case FieldLabels, FieldAssignees:
		ids, ok := value.([]string)
		if !ok && value != nil {
			return nil, fieldValueErr(field, value)
		}
		return normalizeIDs(ids), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
}

// FieldValuesEqual compares two normalized field values.
func FieldValuesEqual(a, b any) bool {
	switch av := a.(type) {
	case *time.Time:
		bv, ok := b.(*time.Time)
		if !ok {
			return false
		}
		if av == nil || bv == nil {
			return av == nil && bv == nil
		}
		return av.Equal(*bv)
	case []string:
		bv, ok := b.([]string)
		return ok && slices.Equal(av, bv)
	default:
		return a == b
	}
}

func fieldValueErr(field Field, value any) error {
	return fmt.Errorf("%w: %s=%v (%T)", ErrInvalidFieldValue, field, value, value)
}

func normalizeDate(ts *time.Time) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	out := ts.UTC().Truncate(time.Second)
	return &out
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := map[string]struct{}{}
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
