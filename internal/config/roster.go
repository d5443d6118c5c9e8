package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// RosterEntry maps a sender label fragment to a channel name.
type RosterEntry struct {
	Key     string
	Channel string
}

// Roster keeps the entries in the order they appear in the YAML mapping,
// so first-match lookups are deterministic.
type Roster []RosterEntry

func (r *Roster) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return &Error{Field: "roster", Reason: fmt.Sprintf("line %d: expected a mapping", node.Line)}
	}
	seen := make(map[string]bool, len(node.Content)/2)
	out := make(Roster, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key, channel string
		if err := node.Content[i].Decode(&key); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&channel); err != nil {
			return err
		}
		if seen[key] {
			return &Error{Field: "roster", Reason: fmt.Sprintf("line %d: duplicate key %q", node.Content[i].Line, key)}
		}
		seen[key] = true
		out = append(out, RosterEntry{Key: key, Channel: channel})
	}
	*r = out
	return nil
}
