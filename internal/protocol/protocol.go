// Package protocol decodes the conductor runtime's startup status stream.
//
// The runtime reports progress over stdout as an undeclared, line-oriented
// text protocol: a line is either a bare decimal digit naming a lifecycle
// step, or free-form log text that may embed an APP_WS_PORT announcement.
// Everything else is noise and decodes to nothing; unmatched lines are
// normal, not errors.
package protocol

import (
	"regexp"
	"strings"
)

// State enumerates the lifecycle steps the runtime reports during startup.
// StateReady is the terminal step. The decoder never enforces ordering;
// states arriving out of the documented sequence are passed through as-is.
type State int

const (
	StateFirstRun State = iota
	StateNotFirstRun
	StateCreatingKeys
	StateRegisteringDna
	StateInstallingApp
	StateEnablingApp
	StateAddingAppInterface
	StateReady
)

var stateNames = map[State]string{
	StateFirstRun:           "first-run",
	StateNotFirstRun:        "not-first-run",
	StateCreatingKeys:       "creating-keys",
	StateRegisteringDna:     "registering-dna",
	StateInstallingApp:      "installing-app",
	StateEnablingApp:        "enabling-app",
	StateAddingAppInterface: "adding-app-interface",
	StateReady:              "ready",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether s is one of the eight documented states.
func (s State) Valid() bool {
	_, ok := stateNames[s]
	return ok
}

var portPattern = regexp.MustCompile(`APP_WS_PORT:\s+(\d+)`)

// ParseState decodes a state-signal line. The match is strict: after
// trimming surrounding whitespace the entire line must be a single digit in
// 0..7. Multi-digit numbers, digits embedded in text, and anything else do
// not signal a state.
func ParseState(line string) (State, bool) {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) != 1 {
		return 0, false
	}
	c := trimmed[0]
	if c < '0' || c > '7' {
		return 0, false
	}
	return State(c - '0'), true
}

// ParsePort extracts a port announcement from a line. Matching is
// substring-based: the APP_WS_PORT token may appear anywhere, surrounded by
// arbitrary log text. The digit run after the token is returned verbatim.
func ParsePort(line string) (string, bool) {
	m := portPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// SignalKind tags the outcome of interpreting one line.
type SignalKind int

const (
	// SignalNone marks a line that matched neither pattern.
	SignalNone SignalKind = iota
	SignalState
	SignalPort
)

// Signal is the typed event decoded from a single line. A line yields at
// most one signal: the state pattern and the port pattern are mutually
// exclusive by construction, but both are checked independently.
type Signal struct {
	Kind  SignalKind
	State State
	Port  string
}

// Interpret classifies one decoded line.
func Interpret(line string) Signal {
	if state, ok := ParseState(line); ok {
		return Signal{Kind: SignalState, State: state}
	}
	if port, ok := ParsePort(line); ok {
		return Signal{Kind: SignalPort, Port: port}
	}
	return Signal{Kind: SignalNone}
}
