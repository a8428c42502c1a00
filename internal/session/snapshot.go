package session

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"forgeshell/pkg/forgetypes"
)

// Snapshot is the persisted session record: the active persona, the
// non-system history (grounding always comes from the freshly loaded bundle)
// and a free-form variable bag. Written at checkpoints, read back at the next
// startup to resume the session.
type Snapshot struct {
	ActivePersona string               `yaml:"active_persona"`
	History       []forgetypes.Message `yaml:"history"`
	Variables     map[string]string    `yaml:"variables,omitempty"`
}

// SaveSnapshot writes the snapshot as YAML.
func SaveSnapshot(path string, snap *Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot back. A missing file is not an error: it
// returns (nil, false, nil).
func LoadSnapshot(path string) (*Snapshot, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, true, nil
}

// checkpoint persists the current session if snapshots are enabled.
func (o *Orchestrator) checkpoint() {
	if o.cfg.SnapshotFile == "" {
		return
	}

	snap := &Snapshot{
		ActivePersona: o.session.ActivePersona,
		Variables:     o.session.Variables,
	}
	for _, msg := range o.session.History {
		if msg.Role == forgetypes.RoleSystem {
			continue
		}
		snap.History = append(snap.History, msg)
	}

	if err := SaveSnapshot(o.cfg.SnapshotFile, snap); err != nil {
		o.log.Warn("Snapshot write failed", "error", err)
	}
}

// restoreSnapshot resumes a previous session when a snapshot exists. The
// snapshot's non-system history replaces the seeded template turn; system
// grounding is taken from the current bundle, and a persona no longer in the
// bundle falls back to the freshly chosen one.
func (o *Orchestrator) restoreSnapshot() {
	if o.cfg.SnapshotFile == "" {
		return
	}
	snap, ok, err := LoadSnapshot(o.cfg.SnapshotFile)
	if err != nil {
		o.console.PrintError(fmt.Errorf("snapshot not restored: %w", err))
		return
	}
	if !ok || len(snap.History) == 0 {
		return
	}

	if snap.ActivePersona != "" && o.bundle.HasPersona(snap.ActivePersona) {
		o.session.ActivePersona = snap.ActivePersona
	}
	if snap.Variables != nil {
		o.session.Variables = snap.Variables
	}

	var history []forgetypes.Message
	for _, msg := range o.session.History {
		if msg.Role == forgetypes.RoleSystem {
			history = append(history, msg)
		}
	}
	o.session.History = append(history, snap.History...)

	o.console.Print(fmt.Sprintf("resumed session (%d messages)", len(snap.History)))
	o.log.Info("Snapshot restored", "messages", len(snap.History), "persona", o.session.ActivePersona)
}
