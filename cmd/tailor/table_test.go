package main

import (
	"strings"
	"testing"
)

func TestRenderTableWrapsWideColumns(t *testing.T) {
	out := renderTable(
		[]column{textColumn("Operation"), wrappedColumn("Phrases", 12)},
		[][]string{{"slow", "slow motion, slow down, slower"}, {"bw"}},
	)
	lines := strings.Split(out, "\n")
	if len(lines) < 8 {
		t.Fatalf("expected phrases to wrap over several lines:\n%s", out)
	}
	for _, line := range lines {
		if strings.Contains(line, "slow motion, slow down") {
			t.Fatalf("phrase column exceeded its width:\n%s", out)
		}
	}
	if !strings.Contains(out, "Operation") || !strings.Contains(out, "bw") {
		t.Fatalf("missing header or short row:\n%s", out)
	}
}

func TestRenderTableRightAlignsNumbers(t *testing.T) {
	out := renderTable([]column{textColumn("Asset"), numberColumn("Versions")}, [][]string{{"clip.mp4", "3"}, {"a.mov", "12"}})
	if !strings.Contains(out, " 3 │") || !strings.Contains(out, "12 │") {
		t.Fatalf("numeric column should align right:\n%s", out)
	}
	if renderTable(nil, nil) != "" {
		t.Fatal("no columns should render nothing")
	}
}
