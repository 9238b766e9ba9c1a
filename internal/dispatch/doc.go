// Package dispatch implements the request-dispatch core: an ordered route
// table with path-template matching, a chain-of-responsibility middleware
// pipeline, and capability-based authorization gating.
//
// The package performs no network I/O. The hosting layer builds one Request
// per inbound call, runs it through a Chain that terminates in a Router, and
// serializes the resulting Response. Every pipeline stage communicates
// through explicit values (match-or-no-match, allow-or-deny); errors are
// reserved for genuinely exceptional conditions such as a failing handler.
package dispatch
