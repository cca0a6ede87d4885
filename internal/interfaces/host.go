// Package interfaces defines the capability surfaces the core calls out to.
// These are kept separate from the public package to avoid circular imports
// between the root package and the internal packages that implement the
// state machine.
package interfaces

// HostAdapter is the narrow capability the core calls into the downstream
// firmware through. It never blocks: every method is expected to complete
// synchronously and cheaply, since it may be called many times within a
// single Process or scheduler callback invocation.
type HostAdapter interface {
	// EmulateKey injects a synthesized key event into the downstream
	// firmware as if it had come from the matrix scanner.
	EmulateKey(row, col uint8, pressed bool)

	// RegisterCode and UnregisterCode register/unregister a specific
	// keycode directly, bypassing the matrix (used for MT_ON_MKEY taps).
	RegisterCode(kc uint16)
	UnregisterCode(kc uint16)

	// GetMods/SetMods read and write the global modifier byte.
	GetMods() uint8
	SetMods(mods uint8)

	// GetLayer/SetLayer read and write the active layer index.
	GetLayer() uint8
	SetLayer(layer uint8)

	// NowMS returns the current monotonic time in milliseconds.
	NowMS() uint32
}

// Logger is the logging capability optionally supplied to the engine.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// WithPos and WithQueueLen return a Logger that tags every subsequent
	// message with the given key position or queue depth, so a call site
	// handling one key doesn't need to repeat it in every format string.
	WithPos(row, col uint8) Logger
	WithQueueLen(n int) Logger
}

// Observer receives bookkeeping events for metrics collection.
// Implementations must be safe to call from the single logical execution
// context the engine runs on; they are never called concurrently by the
// engine itself, but a remote scraper may read their accumulated state at
// any time, so exported accumulators should use atomics.
type Observer interface {
	ObserveTap(kc uint16, latencyNs uint64)
	ObserveHold(kc uint16, latencyNs uint64)
	ObserveTimeout(kind string)
	ObserveQueueDepth(depth int)
	ObserveDegradation()
}
