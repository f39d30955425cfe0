// Package routing is the session-routing and assignment core.
//
// It tracks connected operators, active user sessions, and a FIFO backlog of
// users awaiting an operator, and decides how inbound chat events map to
// outbound notifications. All state lives behind a single Router so that no
// two inbound events are ever applied against partially mutated state.
//
// The core has no error surface: an unknown sender, a missing counterparty,
// or an empty operator pool is a valid state handled by a silent no-op, never
// a failure reported to the peer.
package routing
