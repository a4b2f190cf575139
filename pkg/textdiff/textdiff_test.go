package textdiff

import (
	"reflect"
	"testing"
)

func TestSplitLines(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a\n", []string{"a"}},
		{"a", []string{"a"}},
		{"a\nb\n", []string{"a", "b"}},
		{"a\n\nb", []string{"a", "", "b"}},
	}
	for _, tc := range cases {
		got := SplitLines(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("SplitLines(%q) = %#v, want %#v", tc.in, got, tc.want)
		}
	}
}

func TestLinesEqual(t *testing.T) {
	a := []string{"one", "two", "three"}
	ops := Lines(a, a)
	if len(ops) != 3 {
		t.Fatalf("ops = %d, want 3", len(ops))
	}
	for i, op := range ops {
		if op.Kind != Equal {
			t.Errorf("op %d kind = %v, want Equal", i, op.Kind)
		}
		if op.Line != a[i] {
			t.Errorf("op %d line = %q, want %q", i, op.Line, a[i])
		}
	}
}

func TestLinesEmptySides(t *testing.T) {
	b := []string{"x", "y"}
	ops := Lines(nil, b)
	if len(ops) != 2 || ops[0].Kind != Insert || ops[1].Kind != Insert {
		t.Errorf("insert-only script wrong: %#v", ops)
	}

	ops = Lines(b, nil)
	if len(ops) != 2 || ops[0].Kind != Delete || ops[1].Kind != Delete {
		t.Errorf("delete-only script wrong: %#v", ops)
	}

	if ops := Lines(nil, nil); ops != nil {
		t.Errorf("empty vs empty = %#v, want nil", ops)
	}
}

func TestLinesSingleLineChange(t *testing.T) {
	a := []string{"My file content"}
	b := []string{"My file content changed"}
	ops := Lines(a, b)

	want := []Op{
		{Kind: Delete, Line: "My file content"},
		{Kind: Insert, Line: "My file content changed"},
	}
	if !reflect.DeepEqual(ops, want) {
		t.Errorf("ops = %#v, want %#v", ops, want)
	}
}

func TestLinesScriptReconstructsBothSides(t *testing.T) {
	a := []string{"a", "b", "c", "d", "e", "f"}
	b := []string{"a", "x", "c", "e", "f", "g"}
	ops := Lines(a, b)

	var gotA, gotB []string
	for _, op := range ops {
		switch op.Kind {
		case Equal:
			gotA = append(gotA, op.Line)
			gotB = append(gotB, op.Line)
		case Delete:
			gotA = append(gotA, op.Line)
		case Insert:
			gotB = append(gotB, op.Line)
		}
	}
	if !reflect.DeepEqual(gotA, a) {
		t.Errorf("script does not reproduce a: %#v", gotA)
	}
	if !reflect.DeepEqual(gotB, b) {
		t.Errorf("script does not reproduce b: %#v", gotB)
	}
}

func TestHunksNoChange(t *testing.T) {
	ops := Lines([]string{"same"}, []string{"same"})
	if hunks := Hunks(ops, 3); hunks != nil {
		t.Errorf("Hunks on equal input = %#v, want nil", hunks)
	}
}

func TestHunksSingleChangeWithContext(t *testing.T) {
	a := []string{"1", "2", "3", "4", "5", "6", "7"}
	b := []string{"1", "2", "3", "CHANGED", "5", "6", "7"}
	hunks := Hunks(Lines(a, b), 2)

	if len(hunks) != 1 {
		t.Fatalf("hunks = %d, want 1", len(hunks))
	}
	h := hunks[0]
	if h.AStart != 2 || h.ALen != 5 {
		t.Errorf("a range = %d,%d, want 2,5", h.AStart, h.ALen)
	}
	if h.BStart != 2 || h.BLen != 5 {
		t.Errorf("b range = %d,%d, want 2,5", h.BStart, h.BLen)
	}
	// 2 leading context, delete, insert, 2 trailing context.
	if len(h.Ops) != 6 {
		t.Errorf("ops = %d, want 6", len(h.Ops))
	}
}

func TestHunksMergeNearbyChanges(t *testing.T) {
	a := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	b := []string{"1", "X", "3", "4", "5", "6", "Y", "8"}
	// Gap between the changes is 4 equal lines; with context 3 they share
	// context and must land in a single hunk.
	hunks := Hunks(Lines(a, b), 3)
	if len(hunks) != 1 {
		t.Fatalf("hunks = %d, want 1 merged hunk", len(hunks))
	}
}

func TestHunksSplitDistantChanges(t *testing.T) {
	a := make([]string, 0, 20)
	b := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		line := string(rune('a' + i))
		a = append(a, line)
		b = append(b, line)
	}
	b[1] = "FIRST"
	b[18] = "SECOND"

	hunks := Hunks(Lines(a, b), 2)
	if len(hunks) != 2 {
		t.Fatalf("hunks = %d, want 2", len(hunks))
	}
	if hunks[0].AStart != 1 {
		t.Errorf("first hunk AStart = %d, want 1", hunks[0].AStart)
	}
	if hunks[1].AStart != 17 {
		t.Errorf("second hunk AStart = %d, want 17", hunks[1].AStart)
	}
}

func TestHunksPureInsertionZeroLengthRange(t *testing.T) {
	hunks := Hunks(Lines(nil, []string{"new line"}), 3)
	if len(hunks) != 1 {
		t.Fatalf("hunks = %d, want 1", len(hunks))
	}
	h := hunks[0]
	if h.ALen != 0 || h.AStart != 0 {
		t.Errorf("a range = %d,%d, want 0,0", h.AStart, h.ALen)
	}
	if h.BStart != 1 || h.BLen != 1 {
		t.Errorf("b range = %d,%d, want 1,1", h.BStart, h.BLen)
	}
}

func TestHunksZeroContext(t *testing.T) {
	a := []string{"keep", "old", "keep"}
	b := []string{"keep", "new", "keep"}
	hunks := Hunks(Lines(a, b), 0)
	if len(hunks) != 1 {
		t.Fatalf("hunks = %d, want 1", len(hunks))
	}
	h := hunks[0]
	if h.AStart != 2 || h.ALen != 1 || h.BStart != 2 || h.BLen != 1 {
		t.Errorf("ranges = a %d,%d b %d,%d, want a 2,1 b 2,1", h.AStart, h.ALen, h.BStart, h.BLen)
	}
	if len(h.Ops) != 2 {
		t.Errorf("ops = %d, want 2 (no context lines)", len(h.Ops))
	}
}
