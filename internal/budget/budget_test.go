package budget

import (
	"strings"
	"testing"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_TrimContext_NoTrimNeeded(t *testing.T) {
	t.Parallel()
	docs := []string{"short one", "short two"}
	got := TrimContext(docs, 10, 1000)
	if len(got) != 2 {
		t.Errorf("expected no trimming, got %d docs", len(got))
	}
}

func Test_TrimContext_DropsLeastRelevantFirst(t *testing.T) {
	t.Parallel()
	docs := []string{
		strings.Repeat("a", 400), // 100 tokens
		strings.Repeat("b", 400), // 100 tokens
		strings.Repeat("c", 400), // 100 tokens
	}
	// reserved 50 + 100 + 100 = 250 fits; third doc pushes to 350 > 300.
	got := TrimContext(docs, 50, 300)
	if len(got) != 2 {
		t.Fatalf("expected 2 docs kept, got %d", len(got))
	}
	if got[0][0] != 'a' || got[1][0] != 'b' {
		t.Error("trimming dropped the wrong documents")
	}
}

func Test_TrimContext_KeepsTopDocument(t *testing.T) {
	t.Parallel()
	docs := []string{
		strings.Repeat("a", 4000), // 1000 tokens, alone over budget
		strings.Repeat("b", 400),
	}
	got := TrimContext(docs, 0, 500)
	if len(got) != 1 || got[0][0] != 'a' {
		t.Errorf("expected only the top document kept, got %d docs", len(got))
	}
}

func Test_TrimContext_SingleDocUntouched(t *testing.T) {
	t.Parallel()
	docs := []string{strings.Repeat("a", 100000)}
	if got := TrimContext(docs, 0, 10); len(got) != 1 {
		t.Errorf("single document must never be dropped, got %d", len(got))
	}
}
