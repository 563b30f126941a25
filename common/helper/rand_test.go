package helper

import "testing"

func TestGenerateRandNumRange(t *testing.T) {
	r := NewRand()
	for i := 0; i < 1000; i++ {
		n := GenerateRandNum(r, 5, 30)
		if n < 5 || n >= 30 {
			t.Fatalf("GenerateRandNum(5, 30) = %d, out of [5, 30)", n)
		}
	}
}

func TestShuffledRangeIsPermutation(t *testing.T) {
	r := NewRand()
	seq := ShuffledRange(r, 75)
	if len(seq) != 75 {
		t.Fatalf("len = %d, want 75", len(seq))
	}
	seen := make(map[int]bool, 75)
	for _, n := range seq {
		if n < 1 || n > 75 {
			t.Fatalf("value out of range: %d", n)
		}
		if seen[n] {
			t.Fatalf("duplicate value: %d", n)
		}
		seen[n] = true
	}
}
