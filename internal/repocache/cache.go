// Package repocache keeps local checkouts of remote skill repositories under
// a cache root, one directory per owner/repo identifier.
//
// A repo is cached once its directory exists. Clones are staged under
// <root>/.staging and renamed into place, so a directory that exists is a
// complete checkout. Updates never remove a cached repo.
package repocache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

var (
	ErrRepoNotCached = errors.New("REPO_NOT_CACHED: repository is not cached")
	ErrFetchFailed   = errors.New("REPO_FETCH_FAILED: fetch failed")
	ErrInvalidID     = errors.New("REPO_INVALID_ID: invalid repository identifier")
)

const stagingDir = ".staging"

type Repo struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	SyncedAt time.Time `json:"syncedAt,omitempty"`
	Revision string    `json:"revision,omitempty"`
}

// Outcome is the result of refreshing one repo in a batch update.
type Outcome struct {
	ID       string `json:"id"`
	Revision string `json:"revision,omitempty"`
	Error    string `json:"error,omitempty"`
	Err      error  `json:"-"`
}

func (o Outcome) OK() bool { return o.Err == nil }

type Cache struct {
	Root    string
	Fetcher Fetcher
	Logger  *log.Logger

	now func() time.Time
}

func New(root string, fetcher Fetcher, logger *log.Logger) *Cache {
	return &Cache{Root: root, Fetcher: fetcher, Logger: logger, now: time.Now}
}

func (c *Cache) log() *log.Logger {
	if c.Logger == nil {
		return log.New(io.Discard)
	}
	return c.Logger
}

func (c *Cache) clock() time.Time {
	if c.now == nil {
		return time.Now().UTC()
	}
	return c.now().UTC()
}

// Path returns the cache directory for id whether or not it is cached.
func (c *Cache) Path(id string) (string, error) {
	parsed, err := ParseID(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.Root, parsed.relDir()), nil
}

// Ensure returns the cached repo for id, fetching it first if it is absent.
// An existing checkout is returned as is, without contacting the remote.
func (c *Cache) Ensure(ctx context.Context, id string) (Repo, error) {
	parsed, err := ParseID(id)
	if err != nil {
		return Repo{}, err
	}
	dir := filepath.Join(c.Root, parsed.relDir())
	if isDir(dir) {
		return c.repo(parsed, dir), nil
	}
	if c.Fetcher == nil {
		return Repo{}, fmt.Errorf("REPO_SETUP: no fetcher configured")
	}

	staging := filepath.Join(c.Root, stagingDir)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return Repo{}, err
	}
	tmp, err := os.MkdirTemp(staging, "clone-*")
	if err != nil {
		return Repo{}, err
	}
	defer os.RemoveAll(tmp)

	c.log().Info("cloning", "repo", parsed.String())
	checkout := filepath.Join(tmp, "repo")
	if err := c.Fetcher.Clone(ctx, parsed, checkout); err != nil {
		return Repo{}, fmt.Errorf("%w: %s: %w", ErrFetchFailed, parsed, err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return Repo{}, err
	}
	if err := os.Rename(checkout, dir); err != nil {
		// Another process may have finished the same clone first.
		if !isDir(dir) {
			return Repo{}, fmt.Errorf("REPO_COMMIT: %w", err)
		}
		c.log().Debug("repo cached concurrently", "repo", parsed.String())
	}
	return c.mark(ctx, parsed, dir), nil
}

// Update refreshes one cached repo. The repo stays cached at its previous
// content if the fetch fails.
func (c *Cache) Update(ctx context.Context, id string) (Repo, error) {
	parsed, err := ParseID(id)
	if err != nil {
		return Repo{}, err
	}
	dir := filepath.Join(c.Root, parsed.relDir())
	if !isDir(dir) {
		return Repo{}, fmt.Errorf("%w: %s", ErrRepoNotCached, parsed)
	}
	if c.Fetcher == nil {
		return Repo{}, fmt.Errorf("REPO_SETUP: no fetcher configured")
	}
	c.log().Info("updating", "repo", parsed.String())
	if err := c.Fetcher.Pull(ctx, dir); err != nil {
		return Repo{}, fmt.Errorf("%w: %s: %w", ErrFetchFailed, parsed, err)
	}
	return c.mark(ctx, parsed, dir), nil
}

// UpdateAll refreshes every cached repo one after another. A failing repo
// is recorded in its Outcome and does not stop the rest.
func (c *Cache) UpdateAll(ctx context.Context) ([]Outcome, error) {
	repos, err := c.List()
	if err != nil {
		return nil, err
	}
	outcomes := make([]Outcome, 0, len(repos))
	for _, r := range repos {
		updated, err := c.Update(ctx, r.ID)
		if err != nil {
			c.log().Warn("update failed", "repo", r.ID, "err", err)
			outcomes = append(outcomes, Outcome{ID: r.ID, Revision: r.Revision, Error: err.Error(), Err: err})
			continue
		}
		outcomes = append(outcomes, Outcome{ID: r.ID, Revision: updated.Revision})
	}
	return outcomes, nil
}

// List enumerates cached repos sorted by identifier. Directories whose names
// are not valid escaped identifiers are ignored.
func (c *Cache) List() ([]Repo, error) {
	owners, err := os.ReadDir(c.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Repo
	for _, o := range owners {
		if !o.IsDir() || strings.HasPrefix(o.Name(), ".") {
			continue
		}
		owner, err := unescapeSegment(o.Name())
		if err != nil {
			continue
		}
		names, err := os.ReadDir(filepath.Join(c.Root, o.Name()))
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if !n.IsDir() {
				continue
			}
			name, err := unescapeSegment(n.Name())
			if err != nil {
				continue
			}
			id, err := ParseID(owner + "/" + name)
			if err != nil {
				continue
			}
			out = append(out, c.repo(id, filepath.Join(c.Root, o.Name(), n.Name())))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Owns reports which cached repo contains path, after resolving symlinks.
func (c *Cache) Owns(path string) (Repo, bool) {
	root, err := filepath.EvalSymlinks(c.Root)
	if err != nil {
		return Repo{}, false
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return Repo{}, false
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return Repo{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 || strings.HasPrefix(parts[0], ".") {
		return Repo{}, false
	}
	owner, err := unescapeSegment(parts[0])
	if err != nil {
		return Repo{}, false
	}
	name, err := unescapeSegment(parts[1])
	if err != nil {
		return Repo{}, false
	}
	id, err := ParseID(owner + "/" + name)
	if err != nil {
		return Repo{}, false
	}
	return c.repo(id, filepath.Join(c.Root, parts[0], parts[1])), true
}

// CheckState reports whether the sync marker file can be read.
func (c *Cache) CheckState() error {
	_, err := loadState(c.Root)
	return err
}

func (c *Cache) repo(id ID, dir string) Repo {
	r := Repo{ID: id.String(), Path: dir}
	st, err := loadState(c.Root)
	if err != nil {
		c.log().Warn("ignoring unreadable cache state", "err", err)
		return r
	}
	if rec, ok := st.find(r.ID); ok {
		r.SyncedAt = rec.SyncedAt
		r.Revision = rec.Revision
	}
	return r
}

// mark records a successful sync. Marker failures are logged, not returned:
// the checkout itself is already consistent.
func (c *Cache) mark(ctx context.Context, id ID, dir string) Repo {
	r := Repo{ID: id.String(), Path: dir, SyncedAt: c.clock()}
	if rev, err := c.Fetcher.Revision(ctx, dir); err == nil {
		r.Revision = rev
	} else {
		c.log().Debug("revision unavailable", "repo", r.ID, "err", err)
	}
	st, err := loadState(c.Root)
	if err != nil {
		c.log().Warn("resetting unreadable cache state", "err", err)
		st = state{Version: StateVersion}
	}
	st.upsert(repoState{ID: r.ID, SyncedAt: r.SyncedAt, Revision: r.Revision})
	if err := saveState(c.Root, st); err != nil {
		c.log().Warn("could not record sync marker", "repo", r.ID, "err", err)
	}
	return r
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
