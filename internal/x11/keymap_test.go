package x11

import (
	"testing"

	"github.com/BurntSushi/xgb/xproto"
)

func TestKeysymForRune(t *testing.T) {
	tests := []struct {
		r    rune
		want xproto.Keysym
	}{
		{'a', 0x61},
		{'Z', 0x5a},
		{' ', 0x20},
		{'é', 0xe9},
		{'\n', 0xff0d},
		{'\t', 0xff09},
		{'☕', 0x0100_2615},
		{'€', 0x0100_20ac},
	}
	for _, tt := range tests {
		if got := keysymForRune(tt.r); got != tt.want {
			t.Errorf("keysymForRune(%q) = %#x, want %#x", tt.r, got, tt.want)
		}
	}
}

func TestFindKeystroke(t *testing.T) {
	// Two keysyms per keycode, starting at keycode 8.
	table := []xproto.Keysym{
		0x61, 0x41, // 8: a A
		0x31, 0x21, // 9: 1 !
		0, 0, // 10: unused
		0xff0d, 0, // 11: Return
	}

	ks, ok := findKeystroke(table, 2, 8, 0x61)
	if !ok || ks.code != 8 || ks.shift {
		t.Fatalf("a: got %+v ok=%v", ks, ok)
	}
	ks, ok = findKeystroke(table, 2, 8, 0x21)
	if !ok || ks.code != 9 || !ks.shift {
		t.Fatalf("!: got %+v ok=%v", ks, ok)
	}
	ks, ok = findKeystroke(table, 2, 8, 0xff0d)
	if !ok || ks.code != 11 {
		t.Fatalf("Return: got %+v ok=%v", ks, ok)
	}
	if _, ok := findKeystroke(table, 2, 8, 0x0100_2615); ok {
		t.Fatal("expected unmapped keysym to be missing")
	}
	if _, ok := findKeystroke(table, 0, 8, 0x61); ok {
		t.Fatal("expected zero keysyms-per-keycode to find nothing")
	}
}

func TestFindUnusedKeycode(t *testing.T) {
	table := []xproto.Keysym{
		0x61, 0x41,
		0, 0,
		0x31, 0x21,
		0, 0,
		0xff0d, 0,
	}
	code, ok := findUnusedKeycode(table, 2, 8)
	if !ok || code != 11 {
		t.Fatalf("got %d ok=%v, want 11", code, ok)
	}

	full := []xproto.Keysym{0x61, 0x41, 0x31, 0x21}
	if _, ok := findUnusedKeycode(full, 2, 8); ok {
		t.Fatal("expected no spare keycode in a full table")
	}
}
