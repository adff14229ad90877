package env

import "testing"

func TestLookupOrder(t *testing.T) {
	vars := map[string]string{"DEVICEHUB_LOG_FORMAT": "console", "LOG_FORMAT": "json"}
	get := func(k string) string { return vars[k] }

	if got := lookup(get, "LOG_FORMAT", "json"); got != "console" {
		t.Fatalf("prefixed value should win, got %q", got)
	}
	delete(vars, "DEVICEHUB_LOG_FORMAT")
	if got := lookup(get, "LOG_FORMAT", "x"); got != "json" {
		t.Fatalf("bare value should be used, got %q", got)
	}
	vars["LOG_FORMAT"] = "   "
	if got := lookup(get, "LOG_FORMAT", "json"); got != "json" {
		t.Fatalf("blank value should fall back, got %q", got)
	}
}
