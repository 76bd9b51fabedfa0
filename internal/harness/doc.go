// Package harness runs connection scenarios against the session state
// machine and compares the resulting traces with golden files.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: reconnect_exhaustion
//	description: "Six unsolicited closes exhaust the reconnect budget"
//	max_reconnect_attempts: 5    # optional, defaults to 5
//	initial:                     # optional, defaults to disconnected
//	  state: connected
//	steps:
//	  - kind: connect-requested
//	  - kind: synced
//	    expect: { state: connected, attempts: 0 }
//	  - kind: connection-closed
//	    message: "socket closed"
//	assertions:
//	  - type: final_state
//	    state: offline
//	    attempts: 6
//	    online: false
//	    last_error: "connection lost"
//	  - type: trace_order
//	    states: [connecting, connected, reconnecting, offline]
//
// Step kinds are the session.EventKind values. state-requested steps name
// the requested state in a state field.
//
// # Assertion Types
//
//   - final_state: Checks any of state, attempts, online and last_error
//     against the status after the last step
//   - trace_contains: The trace enters the given state at least once
//   - trace_order: The trace enters the given states in this order
//   - trace_count: The trace enters the given state exactly count times
//
// "Enters" means a step whose resulting state differs from its starting
// state.
//
// # Golden Traces
//
// RunWithGolden serializes the trace and final status as canonical JSON
// and compares it with testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
