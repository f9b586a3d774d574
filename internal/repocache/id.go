package repocache

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/mod/module"
)

// ID identifies a remote repository as owner/name.
type ID struct {
	Owner string
	Name  string
}

func (id ID) String() string {
	return id.Owner + "/" + id.Name
}

// ParseID accepts "owner/repo", with an optional ".git" suffix. Segments
// use the characters a git host allows in names: ASCII letters, digits,
// '-', '_' and '.'.
func ParseID(s string) (ID, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".git")
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return ID{}, fmt.Errorf("%w: %q (use owner/repo)", ErrInvalidID, s)
	}
	id := ID{Owner: parts[0], Name: parts[1]}
	for _, seg := range parts {
		if seg == "" || strings.HasPrefix(seg, ".") {
			return ID{}, fmt.Errorf("%w: %q (use owner/repo)", ErrInvalidID, s)
		}
		if i := strings.IndexFunc(seg, func(r rune) bool { return !segmentRune(r) }); i >= 0 {
			return ID{}, fmt.Errorf("%w: %q: invalid char %q", ErrInvalidID, s, seg[i])
		}
		if _, err := escapeSegment(seg); err != nil {
			return ID{}, fmt.Errorf("%w: %q: %v", ErrInvalidID, s, err)
		}
	}
	return id, nil
}

func segmentRune(r rune) bool {
	return 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' ||
		r == '-' || r == '_' || r == '.'
}

// reservedMark never appears in a parsed segment. It is inserted into names
// Windows reserves (con, aux.js, lpt1) and names ending in '.', so that every
// segment has a usable directory name.
const reservedMark = "~"

// escapeSegment maps an identifier segment to a directory name that is
// unique even on case-insensitive filesystems: upper-case letters become
// '!' followed by the lower-case letter.
func escapeSegment(seg string) (string, error) {
	if dir, err := module.EscapeVersion(seg); err == nil {
		return dir, nil
	}
	marked := seg
	if i := strings.Index(marked, "."); i >= 0 {
		marked = marked[:i] + reservedMark + marked[i:]
	} else {
		marked += reservedMark
	}
	if strings.HasSuffix(marked, ".") {
		marked += reservedMark
	}
	return module.EscapeVersion(marked)
}

// unescapeSegment reverses escapeSegment. Names escapeSegment would not
// produce are rejected.
func unescapeSegment(dir string) (string, error) {
	v, err := module.UnescapeVersion(dir)
	if err != nil {
		return "", err
	}
	seg := strings.ReplaceAll(v, reservedMark, "")
	if again, err := escapeSegment(seg); err != nil || again != dir {
		return "", fmt.Errorf("invalid escaped segment %q", dir)
	}
	return seg, nil
}

// relDir is the cache subdirectory for id, relative to the cache root.
func (id ID) relDir() string {
	owner, _ := escapeSegment(id.Owner)
	name, _ := escapeSegment(id.Name)
	return filepath.Join(owner, name)
}
