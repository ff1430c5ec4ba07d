// Package main runs the HTTP relay used by e2ee devices during development
// and tests. It stores published pre-key bundles and queues encrypted
// envelopes for recipients until they pull them. See package relay for the
// HTTP API.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Each bundle fetch hands out at most one one-time pre-key and removes it.
//   - Pulling with a cursor drops every delivery up to that cursor.
//   - Requests are logged with zerolog; Prometheus metrics are served at
//     /metrics.
//
// Configuration comes from the environment (and a .env file): RELAY_ADDR
// (default :8080), ENV (development for console logs), LOG_LEVEL, and the
// RELAY_READ_TIMEOUT, RELAY_WRITE_TIMEOUT, RELAY_IDLE_TIMEOUT and
// RELAY_SHUTDOWN_TIMEOUT durations. See app.LoadRelayConfig.
//
// The relay is an untrusted middleman. It never sees plaintext or private
// keys; it only stores ciphertext and public bundles.
package main
