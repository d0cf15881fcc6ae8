package main

import (
	"os"
	"testing"

	"github.com/fatih/color"
)

func TestParseTriState(t *testing.T) {
	cases := []struct {
		in      string
		want    triState
		wantErr bool
	}{
		{"", triAuto, false},
		{"auto", triAuto, false},
		{"ON", triOn, false},
		{" off ", triOff, false},
		{"always", triAuto, true},
	}
	for _, tc := range cases {
		got, err := parseTriState("ui", tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseTriState(%q) err = %v", tc.in, err)
			continue
		}
		if err == nil && got != tc.want {
			t.Errorf("parseTriState(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestResolveAgainstPipe(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	if !triOn.resolve(w) {
		t.Error("forced on should not consult the stream")
	}
	if triOff.resolve(w) {
		t.Error("forced off should not consult the stream")
	}
	if triAuto.resolve(w) {
		t.Error("a pipe is not a terminal")
	}
}

func TestApplyColorMode(t *testing.T) {
	orig := color.NoColor
	defer func() { color.NoColor = orig }()

	if err := applyColorMode("off"); err != nil {
		t.Fatalf("applyColorMode(off): %v", err)
	}
	if !color.NoColor {
		t.Error("--color=off left color enabled")
	}
	if err := applyColorMode("on"); err != nil {
		t.Fatalf("applyColorMode(on): %v", err)
	}
	if color.NoColor {
		t.Error("--color=on left color disabled")
	}
	if err := applyColorMode("sometimes"); err == nil {
		t.Error("bad color mode accepted")
	}
}
