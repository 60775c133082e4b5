package budget

import "testing"

func TestSplitSentences(t *testing.T) {
	testCases := []struct {
		name      string
		text      string
		wantLeft  string
		wantRight string
		wantOK    bool
	}{
		{
			name:      "two latin sentences",
			text:      "First sentence here. Second sentence there.",
			wantLeft:  "First sentence here.",
			wantRight: "Second sentence there.",
			wantOK:    true,
		},
		{
			name:      "cjk full stop needs no space",
			text:      "第一句话。第二句话。",
			wantLeft:  "第一句话。",
			wantRight: "第二句话。",
			wantOK:    true,
		},
		{
			name:   "no boundary",
			text:   "one long unbroken stretch of words with no enders",
			wantOK: false,
		},
		{
			name:   "decimal point is not a boundary",
			text:   "value 3.14159 appears mid-number",
			wantOK: false,
		},
		{
			name:   "empty",
			text:   "",
			wantOK: false,
		},
		{
			name:   "single rune",
			text:   ".",
			wantOK: false,
		},
		{
			name:      "question mark boundary",
			text:      "Is it done? Yes it is done now.",
			wantLeft:  "Is it done?",
			wantRight: "Yes it is done now.",
			wantOK:    true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			left, right, ok := SplitSentences(tc.text)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v (left=%q right=%q)", ok, tc.wantOK, left, right)
			}
			if !ok {
				return
			}
			if left != tc.wantLeft || right != tc.wantRight {
				t.Errorf("got (%q, %q), want (%q, %q)", left, right, tc.wantLeft, tc.wantRight)
			}
			if left == "" || right == "" {
				t.Error("both halves must be non-empty")
			}
		})
	}
}

func TestSplitSentencesPicksBoundaryNearMidpoint(t *testing.T) {
	text := "A. BBBBBBBBBBBBBBBBBBBB. C."
	left, right, ok := SplitSentences(text)
	if !ok {
		t.Fatal("expected a split")
	}
	if left != "A. BBBBBBBBBBBBBBBBBBBB." || right != "C." {
		t.Errorf("got (%q, %q), midpoint boundary expected", left, right)
	}
}
