package preset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lumenweave/stripzones/internal/compose"
)

// MaxSlots is the number of user snapshot slots (ids 0..4).
const MaxSlots = 5

var (
	ErrBadSlot  = errors.New("preset: slot out of range")
	ErrNotFound = errors.New("preset: slot empty")
)

// Store persists snapshots as YAML files in a directory, one file per slot.
type Store struct {
	dir string
}

func NewStore(dir string) *Store { return &Store{dir: dir} }

func (s *Store) path(slot int) string {
	return filepath.Join(s.dir, fmt.Sprintf("slot%d.yaml", slot))
}

// Save writes snap into slot, creating the directory on first use.
func (s *Store) Save(slot int, snap compose.Snapshot) error {
	if slot < 0 || slot >= MaxSlots {
		return fmt.Errorf("%w: %d", ErrBadSlot, slot)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(slot), b, 0o644)
}

// Load reads the snapshot stored in slot.
func (s *Store) Load(slot int) (compose.Snapshot, error) {
	if slot < 0 || slot >= MaxSlots {
		return compose.Snapshot{}, fmt.Errorf("%w: %d", ErrBadSlot, slot)
	}
	b, err := os.ReadFile(s.path(slot))
	if err != nil {
		if os.IsNotExist(err) {
			return compose.Snapshot{}, fmt.Errorf("%w: %d", ErrNotFound, slot)
		}
		return compose.Snapshot{}, err
	}
	var snap compose.Snapshot
	if err := yaml.Unmarshal(b, &snap); err != nil {
		return compose.Snapshot{}, err
	}
	return snap, nil
}
