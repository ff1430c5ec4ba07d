// Package memzero wipes secret material on a best-effort basis. The Go
// runtime may already have copied the bytes elsewhere; this only clears the
// buffer it is given.
package memzero

import "runtime"

// Zero overwrites b with zeros.
func Zero(b []byte) {
	clear(b)
	runtime.KeepAlive(b)
}

// Key zeroes a fixed-size key in place. A nil k is ignored.
func Key[K ~[32]byte](k *K) {
	if k == nil {
		return
	}
	Zero((*k)[:])
}
