package worldimg

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"GROWTOPIA", "growtopia"},
		{"growtopia", "growtopia"},
		{"Grow Topia", "growtopia"},
		{"  Buy-World  ", "buyworld"},
		{"a - b - c", "abc"},
		{"\tSTART\n", "start"},
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"GROWTOPIA", "Grow Topia", " -x- ", "\t-a b-\n", "MiXeD-Case World", "ÄÖÜ", "--", "",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestIsPNG(t *testing.T) {
	if !IsPNG(append(append([]byte(nil), pngSignature...), 0, 1, 2)) {
		t.Fatalf("expected signature prefix to be accepted")
	}
	if IsPNG(pngSignature[:7]) {
		t.Fatalf("short payload must be rejected")
	}
	if IsPNG([]byte("<!DOCTYPE html><html></html>")) {
		t.Fatalf("html payload must be rejected")
	}
	if IsPNG(nil) {
		t.Fatalf("nil payload must be rejected")
	}
}
