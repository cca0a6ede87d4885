package behavior

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// tomlEntry mirrors Behavior but with string-keyed kinds, since TOML
// keymap files are authored by hand.
type tomlEntry struct {
	Kind            string `toml:"kind"`
	ModMask         uint8  `toml:"mod_mask"`
	Layer           uint8  `toml:"layer"`
	MacroKC         uint16 `toml:"macro_kc"`
	TapSequenceLen  uint8  `toml:"tap_sequence_len"`
	TapTimeoutMS    uint32 `toml:"tap_timeout_ms"`
	SeqTimeoutMS    uint32 `toml:"seq_timeout_ms"`
	FollowTimeoutMS uint32 `toml:"follow_timeout_ms"`
	RelTimeoutMS    uint32 `toml:"rel_timeout_ms"`
}

// tomlDoc is the on-disk shape of a keymap file: a table of keycode ->
// entry, keyed by decimal keycode string since TOML table keys are strings.
type tomlDoc struct {
	Keys map[string]tomlEntry `toml:"keys"`
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "", "PLAIN":
		return PLAIN, nil
	case "MT":
		return MT, nil
	case "LT":
		return LT, nil
	case "MTE":
		return MTE, nil
	case "MT_ON_MKEY":
		return MT_ON_MKEY, nil
	default:
		return PLAIN, fmt.Errorf("behavior: unknown kind %q", s)
	}
}

// LoadTOMLFile decodes a keymap TOML file into a Table. The file format is:
//
//	[keys.23]
//	kind = "MT"
//	mod_mask = 1
//
// where the key under [keys.*] is the decimal keycode.
func LoadTOMLFile(path string) (*Table, error) {
	var doc tomlDoc
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("behavior: decode %s: %w", path, err)
	}
	return buildTable(doc)
}

// LoadTOMLString decodes a keymap TOML document from a string, for tests
// and embedded default layouts.
func LoadTOMLString(doc string) (*Table, error) {
	var d tomlDoc
	if _, err := toml.Decode(doc, &d); err != nil {
		return nil, fmt.Errorf("behavior: decode string: %w", err)
	}
	return buildTable(d)
}

func buildTable(doc tomlDoc) (*Table, error) {
	table := EmptyTable()
	for key, entry := range doc.Keys {
		var kc uint16
		if _, err := fmt.Sscanf(key, "%d", &kc); err != nil {
			return nil, fmt.Errorf("behavior: keycode %q is not numeric: %w", key, err)
		}
		kind, err := parseKind(entry.Kind)
		if err != nil {
			return nil, fmt.Errorf("behavior: keycode %s: %w", key, err)
		}
		table.Set(kc, Behavior{
			Kind:            kind,
			ModMask:         entry.ModMask,
			Layer:           entry.Layer,
			MacroKC:         entry.MacroKC,
			TapSequenceLen:  entry.TapSequenceLen,
			TapTimeoutMS:    entry.TapTimeoutMS,
			SeqTimeoutMS:    entry.SeqTimeoutMS,
			FollowTimeoutMS: entry.FollowTimeoutMS,
			RelTimeoutMS:    entry.RelTimeoutMS,
		})
	}
	return table, nil
}
