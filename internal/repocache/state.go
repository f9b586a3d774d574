package repocache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"
	"skillset/internal/fsutil"
)

const StateVersion = 1

// state holds the last-synchronized marker of every cached repo.
type state struct {
	Version int         `toml:"version"`
	Repos   []repoState `toml:"repos"`
}

type repoState struct {
	ID       string    `toml:"id"`
	SyncedAt time.Time `toml:"synced_at"`
	Revision string    `toml:"revision,omitempty"`
}

func statePath(root string) string {
	return filepath.Join(root, "state.toml")
}

func loadState(root string) (state, error) {
	blob, err := os.ReadFile(statePath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return state{Version: StateVersion}, nil
		}
		return state{}, err
	}
	var st state
	if err := toml.Unmarshal(blob, &st); err != nil {
		return state{}, fmt.Errorf("REPO_STATE_PARSE: %w", err)
	}
	if st.Version == 0 {
		st.Version = StateVersion
	}
	if st.Version != StateVersion {
		return state{}, fmt.Errorf("REPO_STATE_VERSION: unsupported state version %d", st.Version)
	}
	return st, nil
}

func saveState(root string, st state) error {
	st.Version = StateVersion
	sort.Slice(st.Repos, func(i, j int) bool { return st.Repos[i].ID < st.Repos[j].ID })
	blob, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("REPO_STATE_ENCODE: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	return fsutil.AtomicWrite(statePath(root), blob, 0o644)
}

func (st *state) find(id string) (repoState, bool) {
	for _, r := range st.Repos {
		if r.ID == id {
			return r, true
		}
	}
	return repoState{}, false
}

func (st *state) upsert(rec repoState) {
	for i := range st.Repos {
		if st.Repos[i].ID == rec.ID {
			st.Repos[i] = rec
			return
		}
	}
	st.Repos = append(st.Repos, rec)
}
