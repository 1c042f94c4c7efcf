package filter

import (
	"strings"
	"testing"
	"time"
)

func floatPtr(f float64) *float64 { return &f }

func TestNewRangeFilter_Validation(t *testing.T) {
	tests := []struct {
		name             string
		gt, gte, lt, lte *float64
		wantErr          string
	}{
		{"gte+lt", nil, floatPtr(0), floatPtr(10), nil, ""},
		{"gt only", floatPtr(1), nil, nil, nil, ""},
		{"no boundary", nil, nil, nil, nil, "at least one"},
		{"gt and gte", floatPtr(1), floatPtr(1), nil, nil, "gt and gte"},
		{"lt and lte", nil, nil, floatPtr(1), floatPtr(1), "lt and lte"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRangeFilter(tc.gt, tc.gte, tc.lt, tc.lte)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestNewMatch(t *testing.T) {
	c, err := NewMatch("priority", "high")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsMatch() || c.IsRange() || c.Key() != "priority" || c.Match() != "high" {
		t.Errorf("unexpected condition: %+v", c)
	}
	if _, err := NewMatch("", "high"); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := NewMatch("priority", ""); err == nil {
		t.Error("expected error for empty value")
	}
}

func TestNewTimeRange(t *testing.T) {
	from := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	to := from.Add(7 * 24 * time.Hour)

	c, err := NewTimeRange("created_at", from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := c.Range()
	if r == nil {
		t.Fatal("expected range condition")
	}
	if r.GTE() == nil || *r.GTE() != float64(from.Unix()) {
		t.Errorf("GTE = %v", r.GTE())
	}
	if r.LT() == nil || *r.LT() != float64(to.Unix()) {
		t.Errorf("LT = %v", r.LT())
	}
}

func TestNewTimeRange_OpenUpperBound(t *testing.T) {
	c, err := NewTimeRange("created_at", time.Unix(100, 0), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Range().LT() != nil {
		t.Error("expected open upper bound")
	}
}

func TestNewTimeRange_BothZero(t *testing.T) {
	if _, err := NewTimeRange("created_at", time.Time{}, time.Time{}); err == nil {
		t.Fatal("expected error for unbounded time range")
	}
}

func TestNewExpression_TooMany(t *testing.T) {
	conds := make([]Condition, MaxConditionsPerGroup+1)
	if _, err := NewExpression(conds, nil, nil); err == nil {
		t.Error("expected error for too many must conditions")
	}
	if _, err := NewExpression(nil, conds, nil); err == nil {
		t.Error("expected error for too many should conditions")
	}
	if _, err := NewExpression(nil, nil, conds); err == nil {
		t.Error("expected error for too many must_not conditions")
	}
}

func TestWithMust_DoesNotMutateReceiver(t *testing.T) {
	prio, _ := NewMatch("priority", "high")
	base, _ := NewExpression([]Condition{prio}, nil, nil)

	tenant, _ := NewMatch("tenant_id", "acme")
	scoped := base.WithMust(tenant)

	if len(base.Must()) != 1 {
		t.Fatalf("receiver mutated: %d must conditions", len(base.Must()))
	}
	if len(scoped.Must()) != 2 || scoped.Must()[0].Key() != "tenant_id" {
		t.Errorf("unexpected scoped must group: %+v", scoped.Must())
	}
}

func TestIsEmpty(t *testing.T) {
	if !(Expression{}).IsEmpty() {
		t.Error("zero expression should be empty")
	}
	c, _ := NewMatch("status", "closed")
	e, _ := NewExpression(nil, nil, []Condition{c})
	if e.IsEmpty() {
		t.Error("expression with must_not should not be empty")
	}
}
