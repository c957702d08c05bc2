package entropy

import "testing"

func TestSourceRanges(t *testing.T) {
	s := New(42, StreamPopularity)
	for i := 0; i < 10000; i++ {
		f := s.Float(-5, 5)
		if f < -5 || f >= 5 {
			t.Fatalf("Float(-5, 5) = %v out of range", f)
		}
		n := s.Int(3, 6)
		if n < 3 || n > 6 {
			t.Fatalf("Int(3, 6) = %d out of range", n)
		}
	}
}

func TestIntCoversInclusiveBounds(t *testing.T) {
	s := New(7, StreamReporter)
	seen := map[int]bool{}
	for i := 0; i < 1000; i++ {
		seen[s.Int(0, 2)] = true
	}
	for _, want := range []int{0, 1, 2} {
		if !seen[want] {
			t.Fatalf("Int(0, 2) never returned %d", want)
		}
	}
	if got := s.Int(4, 4); got != 4 {
		t.Fatalf("Int(4, 4) = %d", got)
	}
}

func TestSameSeedSameSequence(t *testing.T) {
	a := New(99, StreamPopularity)
	b := New(99, StreamPopularity)
	for i := 0; i < 100; i++ {
		if x, y := a.Float(0, 1), b.Float(0, 1); x != y {
			t.Fatalf("draw %d differs: %v vs %v", i, x, y)
		}
	}
}

func TestStreamsAreIndependent(t *testing.T) {
	a := New(99, StreamPopularity)
	b := New(99, StreamReporter)
	same := 0
	for i := 0; i < 100; i++ {
		if a.Float(0, 1) == b.Float(0, 1) {
			same++
		}
	}
	if same > 1 {
		t.Fatalf("streams share %d of 100 draws", same)
	}
}

func TestNewSeed(t *testing.T) {
	seed, err := NewSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	if seed == 0 {
		t.Fatal("seed must not be zero")
	}
}
