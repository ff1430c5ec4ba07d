// Package relay is the untrusted store-and-forward service between devices
// and the HTTP client that talks to it.
//
// The relay keeps public pre-key bundles and per-recipient queues of opaque
// envelopes. It never sees plaintext or private keys.
//
// Hub holds the state in memory and implements domain.BundleDirectory and
// domain.EnvelopeTransport directly, so tests can run devices against it
// without HTTP. NewRouter exposes a Hub over JSON/HTTP:
//
//	PUT  /v1/bundles/{peer}                 publish a bundle
//	GET  /v1/bundles/{peer}                 fetch a bundle with at most one one-time pre-key
//	POST /v1/envelopes/{peer}               queue an envelope for peer
//	GET  /v1/envelopes/{peer}?since=&limit= pull deliveries after a cursor
//	GET  /healthz
//	GET  /metrics
//
// Client implements the same two interfaces over HTTP, retrying transient
// failures with exponential backoff. A 404 maps to domain.ErrNotFound.
package relay
