// Package chat implements real-time routing between anonymous end-users and
// a pool of human operators.
//
// It keeps WebSocket lifecycle and frame encoding isolated from the routing
// core so the pairing rules, waiting backlog, and teardown semantics remain
// independent of any transport concern.
package chat
