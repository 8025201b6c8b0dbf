package gate

import (
	"fmt"
	"math"
)

// Action is what the gate does with a native's result.
type Action uint8

const (
	ActionReturn Action = iota
	ActionError
	ActionYield
)

func (a Action) String() string {
	switch a {
	case ActionReturn:
		return "return"
	case ActionError:
		return "error"
	case ActionYield:
		return "yield"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// ReturnError is the result code asking the gate to raise the value on top
// of the stack.
const ReturnError = -1

// YieldPopping returns the result code that pops k values and yields the
// remaining frame values.
func YieldPopping(k int) int {
	return -2 - k
}

// Result is a decoded result code. Count is the number of values returned
// for ActionReturn and the number of values popped for ActionYield.
type Result struct {
	Action Action
	Count  int
}

// Decode classifies a native's result code.
func Decode(r int) Result {
	switch {
	case r >= 0:
		return Result{Action: ActionReturn, Count: r}
	case r == ReturnError, r == math.MinInt:
		// -2 - MinInt overflows
		return Result{Action: ActionError}
	default:
		return Result{Action: ActionYield, Count: -2 - r}
	}
}

// Encode is the inverse of Decode.
func (r Result) Encode() int {
	switch r.Action {
	case ActionReturn:
		return r.Count
	case ActionYield:
		return YieldPopping(r.Count)
	default:
		return ReturnError
	}
}
