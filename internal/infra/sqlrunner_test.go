package infra

import (
	"strings"
	"testing"
)

func TestExtractMarker(t *testing.T) {
	marker, stmt, err := extractMarker("--sql 0d3c51fa-61f2-4de0-9b9d-7a54cf20ce68\nselect 1;\n")
	if err != nil {
		t.Fatalf("extractMarker: %v", err)
	}
	if marker != "0d3c51fa-61f2-4de0-9b9d-7a54cf20ce68" {
		t.Fatalf("unexpected marker %q", marker)
	}
	if !strings.Contains(stmt, "select 1") {
		t.Fatalf("statement body lost: %q", stmt)
	}
	if strings.Contains(stmt, "--sql") {
		t.Fatalf("marker line leaked into statement: %q", stmt)
	}
}

func TestExtractMarkerRejectsUnmarkedSQL(t *testing.T) {
	cases := []string{
		"select 1;",
		"-- sql 0d3c51fa-61f2-4de0-9b9d-7a54cf20ce68\nselect 1;",
		"--sql not-a-uuid\nselect 1;",
		"--sql 0d3c51fa-61f2-4de0-9b9d-7a54cf20ce68",
		"",
	}
	for _, q := range cases {
		if _, _, err := extractMarker(q); err == nil {
			t.Fatalf("extractMarker(%q) should fail", q)
		}
	}
}
