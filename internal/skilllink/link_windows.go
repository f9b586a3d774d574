//go:build windows

package skilllink

import (
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
)

// junction is an NTFS directory junction. Unlike symlinks it needs no
// privilege to create.
type junction struct{}

func (junction) Kind() Kind { return KindJunction }

func (junction) Create(target, dest string) error {
	if _, err := os.Lstat(dest); err == nil {
		return &fs.PathError{Op: "mklink", Path: dest, Err: fs.ErrExist}
	}
	out, err := exec.Command("cmd", "/c", "mklink", "/J", dest, target).CombinedOutput()
	if err != nil {
		return fmt.Errorf("mklink /J: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (junction) Target(path string) (string, error) { return os.Readlink(path) }

// Junctions are reported as irregular files by Lstat.
func (junction) IsLink(info fs.FileInfo) bool {
	return info.Mode()&(fs.ModeSymlink|fs.ModeIrregular) != 0
}

func platformLinks() []DirectoryLink {
	return []DirectoryLink{symlink{}, junction{}}
}
