// Package behavior holds the static per-keycode configuration that tells
// the engine which keys get smart tap/hold treatment and how.
package behavior

import "fmt"

// Kind identifies which smart-key flavor a keycode uses.
type Kind int

const (
	// PLAIN keys have no smart behavior; a press/release passes straight
	// through the dispatcher's own re-emission path.
	PLAIN Kind = iota

	// MT is mod-tap: hold applies a modifier, tap emits the key's own code.
	MT

	// LT is layer-tap: hold switches to another layer, tap emits the key's
	// own code.
	LT

	// MTE is mod-tap-eager: the modifier is applied as soon as an
	// interfering key is pressed, not only on TAP_TIMEOUT.
	MTE

	// MT_ON_MKEY is a mod-tap whose tap emits a distinct macro keycode
	// instead of the physical key's own code.
	MT_ON_MKEY
)

func (k Kind) String() string {
	switch k {
	case PLAIN:
		return "PLAIN"
	case MT:
		return "MT"
	case LT:
		return "LT"
	case MTE:
		return "MTE"
	case MT_ON_MKEY:
		return "MT_ON_MKEY"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Behavior is the immutable record of how one keycode should be
// interpreted. Zero value is PLAIN with no timing overrides.
type Behavior struct {
	Kind Kind

	// ModMask is the modifier bits applied while this key is held, for
	// MT/MTE/MT_ON_MKEY.
	ModMask uint8

	// Layer is the layer index switched to while this key is held, for LT.
	Layer uint8

	// MacroKC is the keycode emitted on tap for MT_ON_MKEY; ignored
	// otherwise.
	MacroKC uint16

	// TapSequenceLen collapses N consecutive taps into a single emission.
	// 0 and 1 both mean "no collapsing" (one emission per tap).
	TapSequenceLen uint8

	// Timing overrides in milliseconds. A zero value means "use the
	// engine-wide default" — see internal/constants.
	TapTimeoutMS    uint32
	SeqTimeoutMS    uint32
	FollowTimeoutMS uint32
	RelTimeoutMS    uint32
}

// IsSmart reports whether this behavior requires the per-key state machine
// at all, or whether it can be treated as a bare pass-through.
func (b Behavior) IsSmart() bool {
	return b.Kind != PLAIN
}

// Table is a static map from keycode to Behavior.
type Table struct {
	entries map[uint16]Behavior
}

// NewTable builds a Table from an explicit keycode -> Behavior map.
func NewTable(entries map[uint16]Behavior) *Table {
	if entries == nil {
		entries = make(map[uint16]Behavior)
	}
	return &Table{entries: entries}
}

// EmptyTable returns a table with no smart keys configured; every lookup
// resolves to PLAIN.
func EmptyTable() *Table {
	return NewTable(nil)
}

// Lookup returns the Behavior configured for kc, or the zero value (PLAIN)
// if none is configured.
func (t *Table) Lookup(kc uint16) Behavior {
	if t == nil {
		return Behavior{Kind: PLAIN}
	}
	if b, ok := t.entries[kc]; ok {
		return b
	}
	return Behavior{Kind: PLAIN}
}

// Set installs or replaces the behavior for a keycode.
func (t *Table) Set(kc uint16, b Behavior) {
	t.entries[kc] = b
}

// Len reports how many keycodes have a behavior configured, PLAIN entries
// included.
func (t *Table) Len() int {
	return len(t.entries)
}
