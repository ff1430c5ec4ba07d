// Package commands defines the e2ee CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init           Create this device's identity and pre-keys
//   - fingerprint    Print the identity fingerprint
//   - bundle         Print the public pre-key bundle
//   - rotate         Replace the signed and one-time pre-keys
//   - register       Publish the public bundle to the relay
//   - start-session  Run the handshake with a peer
//   - send           Encrypt and send a message
//   - recv           Fetch and decrypt queued messages
//   - safety-number  Print the safety number for a peer
//   - verify         Compare a peer's safety number with ours
//
// # Implementation
//
// Settings come from the environment (see app.LoadConfig) and are
// overridden by persistent flags. The root command builds the dependency
// graph before any subcommand runs and closes it afterwards. Protocol
// failures (bad signature, failed authentication) are returned unwrapped so
// main can report them apart from transport errors.
package commands
