package main

import "testing"

func TestParseTeams(t *testing.T) {
	got, err := parseTeams(" 0, 2 ")
	if err != nil || len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("got=%v err=%v", got, err)
	}
	if got, _ := parseTeams(""); got != nil {
		t.Fatalf("empty filter=%v", got)
	}
	if _, err := parseTeams("1,x"); err == nil {
		t.Fatalf("expected error")
	}
}
