package sharelink

import (
	"encoding/json"
	"errors"
	"fmt"
)

// migration lifts a decoded document from version v to v+1 in place.
type migration func(fields map[string]json.RawMessage) error

// migrations[v] upgrades version v. Empty while version 1 is the only
// format.
var migrations = map[int]migration{}

func migrate(fields map[string]json.RawMessage) error {
	raw, ok := fields["v"]
	if !ok {
		return errors.New("missing version")
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("version: %w", err)
	}
	if v < 1 || v > CurrentVersion {
		return fmt.Errorf("unsupported version %d", v)
	}

	for v < CurrentVersion {
		step, ok := migrations[v]
		if !ok {
			return fmt.Errorf("no migration from version %d", v)
		}
		if err := step(fields); err != nil {
			return fmt.Errorf("migrate v%d: %w", v, err)
		}
		v++
	}
	fields["v"] = json.RawMessage(fmt.Sprint(CurrentVersion))

	// Tokens written before custom pins, measurements and restricted zones
	// existed simply lack those arrays.
	for _, key := range []string{"fireworks", "custom", "audiences", "measurements", "restricted"} {
		if raw, ok := fields[key]; !ok || string(raw) == "null" {
			fields[key] = json.RawMessage("[]")
		}
	}
	return nil
}
