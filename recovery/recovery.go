// Package recovery decides how the decoding stack reacts to malformed input.
package recovery

import "context"

// Strategy is consulted whenever the scanner or parser meets data it cannot
// interpret. The returned Action tells the caller whether to give up or carry on.
type Strategy interface {
	OnError(ctx context.Context, err error, location Location) Action
}

type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionFix
	ActionWarn
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionFix:
		return "fix"
	case ActionWarn:
		return "warn"
	default:
		return "fail"
	}
}

// Continue reports whether the caller may proceed after the action.
func (a Action) Continue() bool { return a != ActionFail }
