package dispatch

// HandlerFunc is the signature for route handlers and the chain terminal.
// It receives the request context and returns a Response describing the
// outcome. A non-nil error signals a programming defect or an unrecoverable
// infrastructure failure; the hosting layer turns it into a 500-class
// response with a loud diagnostic. Expected outcomes, including denials and
// not-found, are Responses, never errors.
type HandlerFunc func(c *Context) (*Response, error)

// Middleware wraps a HandlerFunc to add a cross-cutting step. A step that
// does not invoke next terminates the request with its own Response; later
// steps and the terminal handler never run.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain is an ordered middleware pipeline in front of a terminal handler.
// Steps execute in strict registration order, synchronously, on the
// goroutine handling the request; exactly one Response results from one Run.
type Chain struct {
	steps []Middleware
}

// NewChain creates a chain with the given steps, in order.
func NewChain(steps ...Middleware) *Chain {
	return &Chain{steps: steps}
}

// Use appends steps to the chain. Steps added first run first.
func (ch *Chain) Use(steps ...Middleware) {
	ch.steps = append(ch.steps, steps...)
}

// Run executes the chain, ending in the terminal handler if no step
// terminates early.
func (ch *Chain) Run(c *Context, terminal HandlerFunc) (*Response, error) {
	h := terminal
	for i := len(ch.steps) - 1; i >= 0; i-- {
		h = ch.steps[i](h)
	}
	return h(c)
}
