package kernels

import (
	"testing"
)

func TestDefaultUnroll(t *testing.T) {
	u := DefaultUnroll()
	if !SupportedUnroll(u) {
		t.Fatalf("DefaultUnroll() = %d, not a supported factor", u)
	}
	if u > MaxUnroll {
		t.Fatalf("DefaultUnroll() = %d exceeds MaxUnroll %d", u, MaxUnroll)
	}

	cfg := ApplyOptions(WithUnroll(0))
	if cfg.Unroll != u {
		t.Errorf("WithUnroll(0) selected %d, want DefaultUnroll() = %d", cfg.Unroll, u)
	}
}

func TestSupportedUnroll(t *testing.T) {
	tests := []struct {
		unroll int
		want   bool
	}{
		{-8, false},
		{0, false},
		{1, true},
		{2, true},
		{3, false},
		{4, true},
		{8, true},
		{12, false},
		{16, true},
		{32, true},
		{64, false},
	}

	for _, tt := range tests {
		if got := SupportedUnroll(tt.unroll); got != tt.want {
			t.Errorf("SupportedUnroll(%d) = %v, want %v", tt.unroll, got, tt.want)
		}
	}
}
