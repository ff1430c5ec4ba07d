// Package app wires application dependencies for the CLI.
//
// Config is read from the environment (and a .env file), then overridden by
// command-line flags. NewWire builds the store, relay client and services
// from it; App exposes the device's use cases to the commands.
package app
