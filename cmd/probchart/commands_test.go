package main

import "testing"

// go test -v --run TestParseGrid
func TestParseGrid(t *testing.T) {
	grid, err := parseGrid([]string{"entry_threshold=0.03, 0.05", "exit_threshold=0.1"})
	if err != nil {
		t.Fatalf("parseGrid: %v", err)
	}
	if got := grid["entry_threshold"]; len(got) != 2 || got[0] != 0.03 || got[1] != 0.05 {
		t.Errorf("entry_threshold = %v", got)
	}
	if got := grid["exit_threshold"]; len(got) != 1 || got[0] != 0.1 {
		t.Errorf("exit_threshold = %v", got)
	}

	for _, bad := range [][]string{nil, {"noequals"}, {"=1"}, {"x="}, {"x=abc"}} {
		if _, err := parseGrid(bad); err == nil {
			t.Errorf("parseGrid(%q) succeeded", bad)
		}
	}
}

// go test -v --run TestFormatParams
func TestFormatParams(t *testing.T) {
	got := formatParams(map[string]float64{"b": 0.5, "a": 2})
	if got != "a=2 b=0.5" {
		t.Errorf("formatParams = %q", got)
	}
}
