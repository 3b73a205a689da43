package services

import "fmt"

// Action is the closed set of operations a signed hook may carry. Dispatch
// switches over it exhaustively instead of comparing raw strings everywhere.
type Action uint8

const (
	ActionSessionCreate Action = iota + 1
	ActionBalance
	ActionBet
	ActionWin
	ActionRefund
)

var actionNames = map[Action]string{
	ActionSessionCreate: "session-create",
	ActionBalance:       "balance",
	ActionBet:           "bet",
	ActionWin:           "win",
	ActionRefund:        "refund",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ParseAction maps the wire value onto the closed set.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown action %q", ErrValidation, s)
}
