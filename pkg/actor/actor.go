package actor

import (
	"context"
	"fmt"

	"github.com/aretw0/weft/pkg/token"
)

// Implementation is the firable unit behind a primitive component. The
// runtime guarantees mutual exclusion per instance: Fire is never invoked
// concurrently on the same implementation, and firing k completes before
// firing k+1 begins.
//
// Fire receives one token per available input port and returns the tokens to
// emit, keyed by output port, in emission order. Side effects (file and
// network I/O) are permitted and may block; the scheduler does not assume
// Fire is fast. Implementations should honor ctx cancellation in blocking
// calls so graph shutdown can interrupt them.
type Implementation interface {
	Fire(ctx context.Context, inputs map[string]token.Token) (map[string][]token.Token, error)
}

// Factory constructs a fresh implementation from resolved parameter
// bindings. It is called once per actor at graph build time, and again when
// the restart fault policy resets an actor to fresh private state.
type Factory func(params map[string]token.Token) (Implementation, error)

// FireFunc adapts a plain function to the Implementation interface, for
// stateless actors.
type FireFunc func(ctx context.Context, inputs map[string]token.Token) (map[string][]token.Token, error)

// Fire implements Implementation.
func (f FireFunc) Fire(ctx context.Context, inputs map[string]token.Token) (map[string][]token.Token, error) {
	return f(ctx, inputs)
}

// FireFault describes a failed firing. Any error returned from Fire is
// treated as a fault; wrapping it in FireFault lets implementations attach a
// stable detail string for diagnostics.
type FireFault struct {
	Detail string
	Err    error
}

func (f *FireFault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("fire fault: %s: %v", f.Detail, f.Err)
	}
	return "fire fault: " + f.Detail
}

func (f *FireFault) Unwrap() error { return f.Err }

// Faultf builds a FireFault with a formatted detail message.
func Faultf(format string, args ...any) *FireFault {
	return &FireFault{Detail: fmt.Sprintf(format, args...)}
}

// Emit is a convenience for single-port output maps.
func Emit(port string, tokens ...token.Token) map[string][]token.Token {
	return map[string][]token.Token{port: tokens}
}
