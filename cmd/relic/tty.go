package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// triState is the shared shape of the --ui and --color switches: force
// on, force off, or follow the terminal.
type triState uint8

const (
	triAuto triState = iota
	triOn
	triOff
)

func parseTriState(flag, value string) (triState, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return triAuto, nil
	case "on":
		return triOn, nil
	case "off":
		return triOff, nil
	default:
		return triAuto, fmt.Errorf("invalid --%s value %q (expected auto|on|off)", flag, value)
	}
}

// resolve answers the switch against a concrete stream.
func (s triState) resolve(f *os.File) bool {
	switch s {
	case triOn:
		return true
	case triOff:
		return false
	default:
		return term.IsTerminal(int(f.Fd()))
	}
}

// applyColorMode flips the process-wide color switch before any command
// writes output. Every colored print site in the tree honors it.
func applyColorMode(value string) error {
	mode, err := parseTriState("color", value)
	if err != nil {
		return err
	}
	color.NoColor = !mode.resolve(os.Stdout)
	return nil
}
