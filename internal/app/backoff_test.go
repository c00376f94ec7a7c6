package app

import (
	"testing"
	"time"
)

func TestBackoff_GrowsAndCaps(t *testing.T) {
	b := newBackoff(100*time.Millisecond, 500*time.Millisecond)

	wantBase := []time.Duration{100, 200, 400, 500, 500}
	for i, base := range wantBase {
		base *= time.Millisecond
		if b.Current() != base {
			t.Fatalf("step %d Current() = %v, want %v", i, b.Current(), base)
		}
		d := b.Next()
		lo := time.Duration(float64(base) * 0.8)
		hi := time.Duration(float64(base) * 1.2)
		if d < lo || d > hi {
			t.Errorf("step %d Next() = %v, want within [%v, %v]", i, d, lo, hi)
		}
	}

	b.Reset()
	if b.Current() != 100*time.Millisecond {
		t.Errorf("Current() after Reset = %v, want 100ms", b.Current())
	}
}

func TestBackoff_MaxBelowInitial(t *testing.T) {
	b := newBackoff(time.Second, time.Millisecond)
	b.Next()
	if b.Current() != time.Second {
		t.Errorf("Current() = %v, want 1s", b.Current())
	}
}
