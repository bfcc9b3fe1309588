package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DraftField names an editable LeadDraft attribute. The name doubles as the
// storage column.
type DraftField string

const (
	FieldCompanyName          DraftField = "company_name"
	FieldContactName          DraftField = "contact_name"
	FieldEmail                DraftField = "email"
	FieldPhone                DraftField = "phone"
	FieldSource               DraftField = "source"
	FieldEstimatedSpend       DraftField = "estimated_spend"
	FieldBuyerQuality         DraftField = "buyer_quality"
	FieldCompanyFit           DraftField = "company_fit"
	FieldUrgency              DraftField = "urgency"
	FieldEngagement           DraftField = "engagement"
	FieldDealSizeFit          DraftField = "deal_size_fit"
	FieldDecisionMakerEngaged DraftField = "decision_maker_engaged"
	FieldBudgetConfirmed      DraftField = "budget_confirmed"
	FieldTimelineConfirmed    DraftField = "timeline_confirmed"
)

// FieldKind selects the coercion rule for a field.
type FieldKind int

const (
	KindText FieldKind = iota
	KindAmount
	KindMetric
	KindCapability
)

const (
	MetricMin = 1
	MetricMax = 5
)

var fieldKinds = map[DraftField]FieldKind{
	FieldCompanyName:          KindText,
	FieldContactName:          KindText,
	FieldEmail:                KindText,
	FieldPhone:                KindText,
	FieldSource:               KindText,
	FieldEstimatedSpend:       KindAmount,
	FieldBuyerQuality:         KindMetric,
	FieldCompanyFit:           KindMetric,
	FieldUrgency:              KindMetric,
	FieldEngagement:           KindMetric,
	FieldDealSizeFit:          KindMetric,
	FieldDecisionMakerEngaged: KindCapability,
	FieldBudgetConfirmed:      KindCapability,
	FieldTimelineConfirmed:    KindCapability,
}

// DraftFields returns every editable field sorted by name.
func DraftFields() []DraftField {
	out := make([]DraftField, 0, len(fieldKinds))
	for f := range fieldKinds {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseDraftField validates a field name.
func ParseDraftField(s string) (DraftField, error) {
	f := DraftField(strings.TrimSpace(s))
	if _, ok := fieldKinds[f]; !ok {
		return "", ValidationError{Field: s, Message: "unknown draft field"}
	}
	return f, nil
}

// Kind returns the coercion rule of f.
func (f DraftField) Kind() FieldKind {
	return fieldKinds[f]
}

// DraftPatch maps fields to coerced values staged for one save. A nil value
// clears the column.
type DraftPatch map[DraftField]any

// Fields returns the staged field names sorted.
func (p DraftPatch) Fields() []DraftField {
	out := make([]DraftField, 0, len(p))
	for f := range p {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CoerceField converts raw user input into the stored value for field.
// Metric values are truncated and clamped to [1,5]; unparsable numbers become
// nil. Blank text becomes nil.
func CoerceField(field DraftField, raw string) (any, error) {
	kind, ok := fieldKinds[field]
	if !ok {
		return nil, ValidationError{Field: string(field), Message: "unknown draft field"}
	}
	switch kind {
	case KindText:
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		return raw, nil
	case KindAmount:
		v, ok := parseNumber(raw, true)
		if !ok {
			return nil, nil
		}
		return v, nil
	case KindMetric:
		v, ok := parseNumber(raw, false)
		if !ok {
			return nil, nil
		}
		return ClampMetric(v), nil
	case KindCapability:
		b, err := parseCapability(raw)
		if err != nil {
			return nil, ValidationError{Field: string(field), Message: err.Error()}
		}
		return b, nil
	}
	return nil, ValidationError{Field: string(field), Message: "unsupported field kind"}
}

// ClampMetric truncates toward zero and clamps to [MetricMin, MetricMax].
func ClampMetric(v float64) int {
	t := math.Trunc(v)
	if t < MetricMin {
		return MetricMin
	}
	if t > MetricMax {
		return MetricMax
	}
	return int(t)
}

func parseNumber(raw string, amount bool) (float64, bool) {
	s := strings.TrimSpace(raw)
	if amount {
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseCapability(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "y", "1", "on":
		return true, nil
	case "false", "no", "n", "0", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("expected yes/no, got %q", raw)
}

// Apply writes a coerced value into the matching LeadDraft attribute.
func (d *LeadDraft) Apply(field DraftField, value any) {
	switch field {
	case FieldCompanyName:
		d.CompanyName = stringPtr(value)
	case FieldContactName:
		d.ContactName = stringPtr(value)
	case FieldEmail:
		d.Email = stringPtr(value)
	case FieldPhone:
		d.Phone = stringPtr(value)
	case FieldSource:
		d.Source = stringPtr(value)
	case FieldEstimatedSpend:
		if v, ok := value.(float64); ok {
			d.EstimatedSpend = &v
		} else {
			d.EstimatedSpend = nil
		}
	case FieldBuyerQuality:
		d.BuyerQuality = intPtr(value)
	case FieldCompanyFit:
		d.CompanyFit = intPtr(value)
	case FieldUrgency:
		d.Urgency = intPtr(value)
	case FieldEngagement:
		d.Engagement = intPtr(value)
	case FieldDealSizeFit:
		d.DealSizeFit = intPtr(value)
	case FieldDecisionMakerEngaged:
		d.DecisionMakerEngaged, _ = value.(bool)
	case FieldBudgetConfirmed:
		d.BudgetConfirmed, _ = value.(bool)
	case FieldTimelineConfirmed:
		d.TimelineConfirmed, _ = value.(bool)
	}
}

// ApplyPatch writes every staged value into d.
func (d *LeadDraft) ApplyPatch(p DraftPatch) {
	for f, v := range p {
		d.Apply(f, v)
	}
}

func stringPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func intPtr(v any) *int {
	i, ok := v.(int)
	if !ok {
		return nil
	}
	return &i
}
