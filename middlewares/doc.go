// Package middlewares provides the request pipeline steps that run before
// the route table: request IDs, panic recovery, timeouts, session
// bootstrap, anti-forgery verification, and audit logging.
//
// Recommended order:
//
//	chain := dispatch.NewChain(
//	    middlewares.RequestID(),
//	    middlewares.Recover(),
//	    middlewares.Timeout(10*time.Second),
//	    middlewares.Session(sessions),
//	    middlewares.CSRF(),
//	    middlewares.Audit(recorder, identity),
//	)
//
// RequestID comes first so every later log line carries the ID; Recover
// wraps everything that may panic; Session must precede CSRF, which reads
// the token the bootstrap seeded.
package middlewares
