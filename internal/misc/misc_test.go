package misc

import "testing"

func TestClamp(t *testing.T) {
	cases := []struct {
		name       string
		v, lo, hi  int
		want       int
	}{
		{"below", -5, 1, 10, 1},
		{"above", 15, 1, 10, 10},
		{"inside", 7, 1, 10, 7},
		{"at_low", 1, 1, 10, 1},
		{"at_high", 10, 1, 10, 10},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Clamp(c.v, c.lo, c.hi); got != c.want {
				t.Fatalf("Clamp(%d, %d, %d) = %d, want %d", c.v, c.lo, c.hi, got, c.want)
			}
		})
	}
}

func TestClampFloat(t *testing.T) {
	if got := Clamp(-0.2, 0.0, 1.0); got != 0 {
		t.Fatalf("Clamp(-0.2, 0, 1) = %v, want 0", got)
	}
	if got := Clamp(1.3, 0.0, 1.0); got != 1 {
		t.Fatalf("Clamp(1.3, 0, 1) = %v, want 1", got)
	}
}

func TestStringLimit(t *testing.T) {
	if got := StringLimit("abcdefgh", 6); got != "abc..." {
		t.Fatalf("StringLimit = %q", got)
	}
	if got := StringLimit("abc", 6); got != "abc" {
		t.Fatalf("StringLimit = %q", got)
	}
}
