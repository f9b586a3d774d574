// Package skilllink exposes skill directories from cached repositories as
// directory links inside a skills directory.
package skilllink

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"skillset/internal/repocache"
)

var (
	ErrSkillNotFound       = errors.New("LNK_SKILL_NOT_FOUND: skill not found")
	ErrSkillAlreadyLinked  = errors.New("LNK_ALREADY_LINKED: destination links to a different skill")
	ErrDestinationOccupied = errors.New("LNK_OCCUPIED: destination exists and is not a link")
	ErrNotALink            = errors.New("LNK_NOT_A_LINK: refusing to remove a real file or directory")
	ErrDuplicateSkill      = errors.New("LNK_DUPLICATE_SKILL: two skills share a name")
)

type Kind string

const (
	KindSymlink  Kind = "symlink"
	KindJunction Kind = "junction"
	// KindNone marks a skills-directory entry that is not a link.
	KindNone Kind = "none"
)

// DirectoryLink is one way of making a directory appear at another path.
type DirectoryLink interface {
	Kind() Kind
	Create(target, dest string) error
	Target(path string) (string, error)
	IsLink(info fs.FileInfo) bool
}

// Owner reports which cached repo contains a path.
type Owner interface {
	Owns(path string) (repocache.Repo, bool)
}

type Link struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Target   string `json:"target,omitempty"`
	Kind     Kind   `json:"kind"`
	Dangling bool   `json:"dangling,omitempty"`
	Repo     string `json:"repo,omitempty"`
	Created  bool   `json:"created,omitempty"`
}

type Linker struct {
	Owner Owner
	// Links are tried in order when creating; all are recognized when
	// inspecting an existing entry.
	Links  []DirectoryLink
	Logger *log.Logger
}

func New(owner Owner, logger *log.Logger) *Linker {
	return &Linker{Owner: owner, Links: platformLinks(), Logger: logger}
}

func (l *Linker) log() *log.Logger {
	if l.Logger == nil {
		return log.New(io.Discard)
	}
	return l.Logger
}

func (l *Linker) links() []DirectoryLink {
	if len(l.Links) == 0 {
		return platformLinks()
	}
	return l.Links
}

// Link makes dest a directory link to source. source must be a directory
// inside a cached repo. A dest that already links to source is left alone.
func (l *Linker) Link(source, dest string) (Link, error) {
	src, err := filepath.Abs(source)
	if err != nil {
		return Link{}, err
	}
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return Link{}, fmt.Errorf("%w: %s", ErrSkillNotFound, source)
	}
	var repoID string
	if l.Owner != nil {
		repo, ok := l.Owner.Owns(src)
		if !ok {
			return Link{}, fmt.Errorf("%w: %s is not inside a cached repository", ErrSkillNotFound, source)
		}
		repoID = repo.ID
	}

	if existing, ok, err := l.inspect(dest); err != nil {
		return Link{}, err
	} else if ok {
		return l.reuse(existing, src, repoID)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Link{}, err
	}
	var errs []string
	for _, dl := range l.links() {
		err := dl.Create(src, dest)
		if err == nil {
			l.log().Debug("linked skill", "dest", dest, "target", src, "kind", dl.Kind())
			return Link{Name: filepath.Base(dest), Path: dest, Target: src, Kind: dl.Kind(), Repo: repoID, Created: true}, nil
		}
		if errors.Is(err, fs.ErrExist) {
			// Someone else created dest since we looked.
			if existing, ok, ierr := l.inspect(dest); ierr == nil && ok {
				return l.reuse(existing, src, repoID)
			}
		}
		errs = append(errs, fmt.Sprintf("%s: %v", dl.Kind(), err))
	}
	return Link{}, fmt.Errorf("LNK_CREATE: %s: %s", dest, strings.Join(errs, "; "))
}

func (l *Linker) reuse(existing Link, src, repoID string) (Link, error) {
	if existing.Kind == KindNone {
		return Link{}, fmt.Errorf("%w: %s", ErrDestinationOccupied, existing.Path)
	}
	if !sameDir(existing.Target, src) {
		return Link{}, fmt.Errorf("%w: %s -> %s", ErrSkillAlreadyLinked, existing.Path, existing.Target)
	}
	existing.Repo = repoID
	return existing, nil
}

// Unlink removes the link at dest. A dangling link can be removed; a real
// file or directory is refused.
func (l *Linker) Unlink(dest string) (Link, error) {
	existing, ok, err := l.inspect(dest)
	if err != nil {
		return Link{}, err
	}
	if !ok {
		return Link{}, fmt.Errorf("%w: %s", ErrSkillNotFound, dest)
	}
	if existing.Kind == KindNone {
		return Link{}, fmt.Errorf("%w: %s", ErrNotALink, dest)
	}
	if err := os.Remove(dest); err != nil {
		return Link{}, fmt.Errorf("LNK_REMOVE: %w", err)
	}
	l.log().Debug("removed skill link", "dest", dest)
	return existing, nil
}

// List returns the entries of a skills directory sorted by name. A missing
// directory has no entries.
func (l *Linker) List(dir string) ([]Link, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Link, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		link, ok, err := l.inspect(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if link.Kind != KindNone && !link.Dangling && l.Owner != nil {
			if repo, owned := l.Owner.Owns(link.Path); owned {
				link.Repo = repo.ID
			}
		}
		out = append(out, link)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// inspect describes what is at path. ok is false when nothing is there.
func (l *Linker) inspect(path string) (Link, bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Link{}, false, nil
		}
		return Link{}, false, err
	}
	link := Link{Name: filepath.Base(path), Path: path, Kind: KindNone}
	for _, dl := range l.links() {
		if !dl.IsLink(info) {
			continue
		}
		target, err := dl.Target(path)
		if err != nil {
			return Link{}, false, fmt.Errorf("LNK_READ: %s: %w", path, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		link.Kind = dl.Kind()
		link.Target = filepath.Clean(target)
		if _, err := os.Stat(path); err != nil {
			link.Dangling = true
		}
		break
	}
	return link, true, nil
}

func sameDir(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	return errA == nil && errB == nil && ra == rb
}

// symlink is a native symbolic link with an absolute target.
type symlink struct{}

func (symlink) Kind() Kind { return KindSymlink }

func (symlink) Create(target, dest string) error { return os.Symlink(target, dest) }

func (symlink) Target(path string) (string, error) { return os.Readlink(path) }

func (symlink) IsLink(info fs.FileInfo) bool { return info.Mode()&fs.ModeSymlink != 0 }
