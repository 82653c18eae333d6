package registry

import (
	"errors"
	"testing"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"NEET Practice 2024", "neet-practice-2024.fairtest.eth"},
		{"  JEE   Mains!! ", "jee-mains.fairtest.eth"},
		{"Physics/Chem: Mock #3", "physics-chem-mock-3.fairtest.eth"},
	}
	for _, tc := range tests {
		got, err := Slug(tc.in, "fairtest.eth")
		if err != nil {
			t.Fatalf("Slug(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("Slug(%q): expected %s, got %s", tc.in, tc.want, got)
		}
	}

	if _, err := Slug("!!!", "fairtest.eth"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestFilter(t *testing.T) {
	entries := []Entry{
		{Name: "neet-demo.fairtest.eth", ExamName: "NEET Demo Test"},
		{Name: "jee-mock.fairtest.eth", ExamName: "JEE Mock"},
		{Name: "olympiad.fairtest.eth", ExamName: "Science Olympiad"},
	}

	if got := Filter(entries, ""); len(got) != 3 {
		t.Fatalf("expected all entries for empty query, got %d", len(got))
	}
	if got := Filter(entries, "NEET"); len(got) != 1 || got[0].Name != "neet-demo.fairtest.eth" {
		t.Fatalf("unexpected match for NEET: %v", got)
	}
	if got := Filter(entries, "science"); len(got) != 1 || got[0].Name != "olympiad.fairtest.eth" {
		t.Fatalf("expected exam-name match, got %v", got)
	}
	if got := Filter(entries, "fairtest"); len(got) != 3 {
		t.Fatalf("expected suffix match on all, got %d", len(got))
	}
}
