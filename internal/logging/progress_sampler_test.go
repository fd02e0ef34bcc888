package logging

import "testing"

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)
	var logged []int
	for _, pct := range []int{1, 4, 9, 10, 15, 19, 42, 43, 99, 100} {
		if s.ShouldLog(pct) {
			logged = append(logged, pct)
		}
	}
	want := []int{1, 10, 42, 99, 100}
	if len(logged) != len(want) {
		t.Fatalf("logged %v, want %v", logged, want)
	}
	for i := range want {
		if logged[i] != want[i] {
			t.Fatalf("logged %v, want %v", logged, want)
		}
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(10)
	if !s.ShouldLog(50) {
		t.Fatalf("first value should log")
	}
	if s.ShouldLog(55) {
		t.Fatalf("same bucket should not log")
	}
	s.Reset()
	if !s.ShouldLog(5) {
		t.Fatalf("after reset low value should log again")
	}
}

func TestProgressSamplerNegative(t *testing.T) {
	s := NewProgressSampler(10)
	if s.ShouldLog(-1) {
		t.Fatalf("negative progress should never log")
	}
}
