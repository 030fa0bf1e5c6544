// Package driver loads bytecode units, persists analysis artifacts and
// carries the optimizer's configuration.
package driver

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"riptide/internal/bc"
)

// Current schema version - increment when the unit format changes.
const unitSchemaVersion uint16 = 1

type unitEnvelope struct {
	Schema uint16
	Unit   *bc.Unit
}

// LoadUnit reads and validates a serialized unit.
func LoadUnit(path string) (*bc.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var env unitEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%s: failed to decode unit: %w", path, err)
	}
	if env.Schema != unitSchemaVersion {
		return nil, fmt.Errorf("%s: unit schema %d, want %d", path, env.Schema, unitSchemaVersion)
	}
	if err := bc.Validate(env.Unit); err != nil {
		return nil, fmt.Errorf("%s: malformed unit: %w", path, err)
	}
	return env.Unit, nil
}

// StoreUnit serializes a unit to path.
func StoreUnit(path string, u *bc.Unit) error {
	if err := bc.Validate(u); err != nil {
		return fmt.Errorf("refusing to store malformed unit: %w", err)
	}
	data, err := msgpack.Marshal(&unitEnvelope{Schema: unitSchemaVersion, Unit: u})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
