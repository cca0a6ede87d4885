// Package modlayer rewrites the mods/layer byte observed by emitted
// keypresses so that a tap emitted after its physical release still
// records the mods/layer that logically applied at the physical press
// instant, and so hold-promotion of an earlier key can retroactively apply
// its mod to still-unresolved later keys (spec §4.5, §7).
package modlayer

import (
	"github.com/modtap/smtd/internal/behavior"
	"github.com/modtap/smtd/internal/interfaces"
)

// Arbiter owns the bookkeeping needed to apply and remove one key's hold
// contribution to the shared mods/layer bytes without clobbering bits the
// host itself set for reasons outside this engine (e.g. a plain modifier
// key resolved by the downstream keymap).
type Arbiter struct {
	host interfaces.HostAdapter

	// ourModContribution is the OR of mod_mask bits this arbiter itself
	// last wrote into host's mods byte, so a later recompute can strip
	// exactly that and nothing the host set independently.
	ourModContribution uint8
}

// New creates an Arbiter over host.
func New(host interfaces.HostAdapter) *Arbiter {
	return &Arbiter{host: host}
}

// EffectiveMods returns the mods byte that should be recorded against a
// tap emitted "as of" baseSnapshot (the mods captured at physical press
// time), OR'd with the mod_mask of every activeHold supplied — i.e. holds
// promoted by earlier keys in the active queue, per spec §4.4.
func EffectiveMods(baseSnapshot uint8, activeHolds []behavior.Behavior) uint8 {
	mods := baseSnapshot
	for _, b := range activeHolds {
		mods |= b.ModMask
	}
	return mods
}

// EffectiveLayer returns the layer that should be recorded for a tap,
// preferring the last LT hold layer in activeLayers (layer
// is a scalar override, not an OR, since only one layer can be active at
// once); baseSnapshot is used when no LT hold is active.
func EffectiveLayer(baseSnapshot uint8, activeLayers []uint8) uint8 {
	if len(activeLayers) == 0 {
		return baseSnapshot
	}
	return activeLayers[len(activeLayers)-1]
}

// ApplyHold promotes b's mod/layer onto the shared state. activeModMasks
// is the OR of mod_mask for every KeyState currently in HOLD (including b,
// already added by the caller) so the recompute below strips exactly our
// own prior contribution and nothing external.
func (a *Arbiter) ApplyHold(b behavior.Behavior, activeModMasks uint8) {
	if b.ModMask != 0 {
		a.recomputeMods(activeModMasks)
	}
	if b.Kind == behaviorLT() {
		a.host.SetLayer(b.Layer)
	}
}

// ReleaseHold unapplies b's mod/layer. activeModMasks is the OR of
// mod_mask for every KeyState still in HOLD *after* b is removed.
// savedLayer is the layer that was active before b was promoted (captured
// by the caller at promotion time), restored on LT release.
func (a *Arbiter) ReleaseHold(b behavior.Behavior, activeModMasks uint8, savedLayer uint8) {
	if b.ModMask != 0 {
		a.recomputeMods(activeModMasks)
	}
	if b.Kind == behaviorLT() {
		a.host.SetLayer(savedLayer)
	}
}

// recomputeMods strips this arbiter's last-known contribution from the
// host's current mods byte (isolating whatever the host set externally),
// then ORs in the freshly supplied contribution.
func (a *Arbiter) recomputeMods(newContribution uint8) {
	hostMods := a.host.GetMods()
	externalBase := hostMods &^ a.ourModContribution
	a.host.SetMods(externalBase | newContribution)
	a.ourModContribution = newContribution
}

// Reset clears the arbiter's tracked contribution, used by Engine.Reset().
func (a *Arbiter) Reset() {
	a.ourModContribution = 0
}

// behaviorLT avoids a direct dependency on behavior.LT's numeric value
// leaking into call sites; kept as a tiny indirection so ApplyHold/
// ReleaseHold read naturally.
func behaviorLT() behavior.Kind {
	return behavior.LT
}
