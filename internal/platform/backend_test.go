package platform

import "testing"

func TestRectEmpty(t *testing.T) {
	tests := []struct {
		r    Rect
		want bool
	}{
		{Rect{Width: 10, Height: 10}, false},
		{Rect{X: -5, Y: -5, Width: 1, Height: 1}, false},
		{Rect{Width: 0, Height: 10}, true},
		{Rect{Width: 10, Height: -1}, true},
	}
	for _, tt := range tests {
		if got := tt.r.Empty(); got != tt.want {
			t.Errorf("%+v.Empty() = %v, want %v", tt.r, got, tt.want)
		}
	}
}
