// Package delay implements the artificial storage-access latency the engine
// injects on every free-bitmap touch and every block-content access, so the
// rest of the tree can be exercised as if blocks and inodes lived on a
// slower secondary store.
package delay

import "runtime"

// sink is written to on every step so the compiler cannot prove the loop in
// Insert has no observable effect and discard it.
var sink byte

// Insert spins for n steps. Each step is opaque to the optimizer: it writes
// through a package-level variable and calls runtime.KeepAlive, which the Go
// compiler treats as a potential use of its argument and will not elide.
func Insert(n int) {
	for i := 0; i < n; i++ {
		sink ^= byte(i)
		runtime.KeepAlive(sink)
	}
}
