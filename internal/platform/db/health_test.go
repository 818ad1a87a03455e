package db

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestHealthJSON(t *testing.T) {
	h := Health{
		Status: "ok",
		Pool: PoolStats{
			Total:     8,
			Idle:      3,
			InUse:     5,
			Max:       20,
			WaitCount: 2,
			WaitTime:  "150ms",
		},
	}

	out, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(out)

	for _, want := range []string{
		`"status":"ok"`,
		`"total":8`,
		`"idle":3`,
		`"in_use":5`,
		`"max":20`,
		`"wait_count":2`,
		`"wait_time":"150ms"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("health JSON %s missing %s", got, want)
		}
	}

	// A healthy response carries no error key at all.
	if strings.Contains(got, `"error"`) {
		t.Errorf("health JSON %s should omit empty error", got)
	}
}

func TestHealthJSONUnavailable(t *testing.T) {
	h := Health{Status: "unavailable", Error: "connection refused"}

	out, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(out)

	if !strings.Contains(got, `"status":"unavailable"`) {
		t.Errorf("health JSON %s missing unavailable status", got)
	}
	if !strings.Contains(got, `"error":"connection refused"`) {
		t.Errorf("health JSON %s missing error detail", got)
	}
}
