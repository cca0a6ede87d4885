// Package constants holds default timing and sizing parameters for the
// smart-key engine.
package constants

// Default timeout values in milliseconds, as specified for the reference
// layout. All are overridable per-keycode via behavior.Behavior; there is
// no engine-wide override.
const (
	// DefaultTapTimeoutMS is how long a key may sit in TOUCH before it is
	// promoted to HOLD.
	DefaultTapTimeoutMS = 200

	// DefaultSeqTimeoutMS is the guard window between taps in a multi-tap
	// run. The key state machine never arms a SEQ_TIMEOUT: finalizing a tap
	// and collapsing a multi-tap run both happen on FOLLOW_TIMEOUT, or as
	// soon as the run reaches its sequence length.
	DefaultSeqTimeoutMS = 100

	// DefaultFollowTimeoutMS is the window after a TAP during which a
	// same-key press folds the instance into THL instead of starting a new
	// instance.
	DefaultFollowTimeoutMS = 200

	// DefaultRelTimeoutMS is the settle window after a HOLD releases,
	// during which a fresh press of the same key is not folded into a new
	// tap interpretation.
	DefaultRelTimeoutMS = 50
)

// DefaultQueueCapacity is the maximum number of in-flight KeyStates the
// active queue will hold before degrading new presses to PLAIN pass-through
// (spec.md §7, "queue overflow").
const DefaultQueueCapacity = 8

// NoLayer is the sentinel layer value meaning "no layer override in
// effect" when restoring a saved previous layer on LT release.
const NoLayer = 0xFF
