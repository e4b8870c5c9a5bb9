package domain

import (
	"fmt"
	"slices"
	"time"
)

type State string

const (
	StateUp   State = "up"
	StateDown State = "down"
)

// ParseState reports ok=false for anything other than "up" or "down".
func ParseState(s string) (State, bool) {
	switch State(s) {
	case StateUp, StateDown:
		return State(s), true
	default:
		return "", false
	}
}

// Outcome is the raw result of one probe: a response code or an error.
type Outcome struct {
	ResponseCode int
	Err          error
}

func Success(code int) Outcome { return Outcome{ResponseCode: code} }

func Failure(err error) Outcome { return Outcome{Err: err} }

func (o Outcome) Failed() bool { return o.Err != nil }

// Classify maps an outcome to up or down. It is up only when the probe got a
// response and its code is one of the accepted ones.
func Classify(o Outcome, accepted []int) State {
	if o.Failed() || o.ResponseCode == 0 {
		return StateDown
	}
	if slices.Contains(accepted, o.ResponseCode) {
		return StateUp
	}
	return StateDown
}

// ShouldAlert reports whether moving to next warrants telling the owner.
// A check that was never observed before, or whose previous state is unknown,
// never alerts.
func ShouldAlert(prev *State, lastChecked *time.Time, next State) bool {
	if lastChecked == nil || prev == nil {
		return false
	}
	return *prev != next
}

// AlertMessage is the text sent to the owner when c changes state.
func AlertMessage(c Check, s State) string {
	return fmt.Sprintf("Alert: Your check for %s %s is currently %s", c.HTTPMethod(), c.URL(), s)
}
