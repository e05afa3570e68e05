package sitegate

import (
	"context"
	"net/http"
	"sync"
)

type stateContextKey string

const stateKey stateContextKey = "sitegate_state"

// State holds the response state for a request. Handlers and middleware set
// an error or a body via the Set* functions instead of writing to the
// ResponseWriter directly; the Handler middleware writes the response once
// the chain returns.
type State struct {
	mu      sync.Mutex
	err     *APIError
	status  int
	body    any
	headers http.Header
}

// HasState returns true if response state exists in the context, i.e. the
// Handler middleware is active for this request.
func HasState(ctx context.Context) bool {
	return getState(ctx) != nil
}

func getState(ctx context.Context) *State {
	state, _ := ctx.Value(stateKey).(*State)
	return state
}
