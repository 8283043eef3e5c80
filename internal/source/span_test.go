package source

import (
	"testing"
)

func TestSpanCover(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Span
		expected Span
	}{
		{
			name:     "disjoint spans in one file",
			a:        Span{File: 1, Start: 10, End: 20},
			b:        Span{File: 1, Start: 30, End: 40},
			expected: Span{File: 1, Start: 10, End: 40},
		},
		{
			name:     "nested span",
			a:        Span{File: 1, Start: 10, End: 40},
			b:        Span{File: 1, Start: 15, End: 20},
			expected: Span{File: 1, Start: 10, End: 40},
		},
		{
			name:     "different files keep receiver",
			a:        Span{File: 1, Start: 10, End: 20},
			b:        Span{File: 2, Start: 0, End: 50},
			expected: Span{File: 1, Start: 10, End: 20},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Cover(tt.b); got != tt.expected {
				t.Fatalf("Cover() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFileSetAddIsIdempotent(t *testing.T) {
	fs := NewFileSet()
	a := fs.Add("main.adb")
	b := fs.Add("util.adb")
	again := fs.Add("main.adb")
	if a == NoFileID || b == NoFileID {
		t.Fatalf("expected valid file IDs")
	}
	if a != again {
		t.Fatalf("expected same ID for repeated name, got %d and %d", a, again)
	}
	if fs.Len() != 2 {
		t.Fatalf("expected 2 files, got %d", fs.Len())
	}
	if got := fs.Format(Span{File: b, Start: 3, End: 9}); got != "util.adb:3-9" {
		t.Fatalf("unexpected format %q", got)
	}
}
