// SPDX-License-Identifier: MIT
package fixture

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		num     int
		wantErr bool
	}{
		{0, true},
		{-1, true},
		{1, false},
		{8, false},
		{255, false},
		{256, true},
	}

	for _, tt := range tests {
		s, err := NewStore(tt.num)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewStore(%d) error = %v, wantErr %v", tt.num, err, tt.wantErr)
			continue
		}
		if err == nil {
			if s.Len() != tt.num {
				t.Errorf("NewStore(%d).Len() = %d", tt.num, s.Len())
			}
			for i, c := range s.Current() {
				if c != Black {
					t.Errorf("fixture %d starts as %v, want black", i, c)
				}
			}
		}
	}
}

func TestWriteLengthMismatch(t *testing.T) {
	s, _ := NewStore(4)
	err := s.Write(make([]Color, 3))
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("Write(3 colors) error = %v, want ErrLengthMismatch", err)
	}
	if err := s.Write(make([]Color, 4)); err != nil {
		t.Fatalf("Write(4 colors) unexpected error: %v", err)
	}
}

func TestWriteCopiesInput(t *testing.T) {
	s, _ := NewStore(2)
	in := []Color{{1, 2, 3}, {4, 5, 6}}
	if err := s.Write(in); err != nil {
		t.Fatal(err)
	}
	in[0] = Color{9, 9, 9}
	if c, _ := s.At(0); c != (Color{1, 2, 3}) {
		t.Errorf("store aliased caller slice: got %v", c)
	}
}

func TestBoundsChecks(t *testing.T) {
	s, _ := NewStore(3)
	for _, idx := range []int{-1, 3, 100} {
		if err := s.Set(idx, Color{}); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Set(%d) error = %v, want ErrIndexOutOfRange", idx, err)
		}
		if _, err := s.At(idx); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("At(%d) error = %v, want ErrIndexOutOfRange", idx, err)
		}
	}
}

func TestCompareExactIndices(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	randColor := func() Color {
		return Color{uint8(rng.Intn(3)), uint8(rng.Intn(3)), uint8(rng.Intn(3))}
	}

	for run := 0; run < 200; run++ {
		n := 1 + rng.Intn(20)
		a := make([]Color, n)
		b := make([]Color, n)
		var want []int
		for i := range a {
			a[i] = randColor()
			b[i] = randColor()
			if a[i] != b[i] {
				want = append(want, i)
			}
		}

		d, err := Compare(a, b, false)
		if err != nil {
			t.Fatal(err)
		}
		got := d.Indices()
		if len(want) == 0 {
			if len(got) != 0 {
				t.Fatalf("run %d: equal sequences produced diff %v", run, got)
			}
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("run %d: diff indices = %v, want %v", run, got, want)
		}
		for _, u := range d {
			if u.Color != b[u.Index] {
				t.Fatalf("run %d: diff carries %v for %d, want current %v", run, u.Color, u.Index, b[u.Index])
			}
		}
	}
}

func TestCompareEqualIsEmpty(t *testing.T) {
	a := []Color{{1, 2, 3}, {0, 0, 0}, {255, 255, 255}}
	d, err := Compare(a, a, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(d) != 0 {
		t.Errorf("Compare(A, A) = %v, want empty", d)
	}
}

func TestCompareForced(t *testing.T) {
	a := []Color{{1, 2, 3}, {0, 0, 0}, {255, 255, 255}}
	d, err := Compare(a, a, true)
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Indices(); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Errorf("forced diff indices = %v, want [0 1 2]", got)
	}
}

func TestCompareLengthMismatch(t *testing.T) {
	if _, err := Compare(make([]Color, 2), make([]Color, 3), false); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("error = %v, want ErrLengthMismatch", err)
	}
}

func TestDiffCommitCycle(t *testing.T) {
	s, _ := NewStore(4)

	if d := s.Diff(false); len(d) != 0 {
		t.Fatalf("fresh store diff = %v, want empty", d)
	}
	if d := s.Diff(true); len(d) != 4 {
		t.Fatalf("fresh store forced diff has %d entries, want 4", len(d))
	}

	_ = s.Set(1, Color{10, 0, 0})
	_ = s.Set(3, Color{0, 0, 10})
	d := s.Diff(false)
	if got := d.Indices(); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Fatalf("diff indices = %v, want [1 3]", got)
	}

	// Without a commit the same changes stay pending.
	if got := s.Diff(false).Indices(); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Fatalf("uncommitted diff indices = %v, want [1 3]", got)
	}

	s.Commit()
	if d := s.Diff(false); len(d) != 0 {
		t.Fatalf("diff after commit = %v, want empty", d)
	}

	// Writes after a commit must not leak into previous.
	_ = s.Set(1, Color{20, 0, 0})
	if got := s.Diff(false); len(got) != 1 || got[0].Color != (Color{20, 0, 0}) {
		t.Fatalf("diff after post-commit write = %v", got)
	}
}

func TestColorString(t *testing.T) {
	if got := (Color{0x0a, 0xff, 0x00}).String(); got != "#0aff00" {
		t.Errorf("String() = %q", got)
	}
}

func BenchmarkDiff(b *testing.B) {
	s, _ := NewStore(MaxFixtures)
	colors := make([]Color, MaxFixtures)
	b.ReportAllocs()
	var n uint8
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n++
		colors[int(n)%MaxFixtures] = Color{n, n, n}
		_ = s.Write(colors)
		_ = s.Diff(false)
		s.Commit()
	}
}

func TestStoreDiffMatchesCompare(t *testing.T) {
	s, _ := NewStore(3)
	_ = s.Set(2, Color{1, 2, 3})
	for _, force := range []bool{false, true} {
		want, err := Compare(make([]Color, 3), s.Current(), force)
		if err != nil {
			t.Fatal(err)
		}
		if got := s.Diff(force); !reflect.DeepEqual(got, want) {
			t.Errorf("Diff(%v) = %v, want %v", force, got, want)
		}
	}
}
