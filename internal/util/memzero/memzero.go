// Package memzero wipes sensitive buffers once they are no longer needed.
package memzero

import "runtime"

// Zero overwrites b with zeros. This is best effort: copies made by the
// runtime or by callers are not reached.
//
//go:noinline
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
