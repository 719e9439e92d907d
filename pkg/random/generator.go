// Package random provides capability interfaces around random number
// generation, so that code depending on randomness can be tested with
// deterministic inputs.
package random

// ThreadSafeGenerator is a Random Number Generator (RNG) that is safe
// to use from within multiple goroutines without additional locking.
type ThreadSafeGenerator interface {
	// Generates arbitrary bytes of data, filling the provided
	// buffer entirely.
	Read(p []byte) (int, error)

	IsThreadSafe()
}
