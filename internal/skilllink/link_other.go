//go:build !windows

package skilllink

func platformLinks() []DirectoryLink {
	return []DirectoryLink{symlink{}}
}
