// Package ipc implements the JSON-RPC control channel between the rostrum
// CLI and the daemon.
//
// The daemon listens on a Unix domain socket and registers a single RPC
// service named "Rostrum". Requests and responses are small JSON structs so
// the CLI never needs direct access to the registry database while the
// daemon holds it.
package ipc
