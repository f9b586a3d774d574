package skilllink

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SkillFile marks a directory as a skill.
const SkillFile = "SKILL.md"

type Skill struct {
	Name string `json:"name"`
	Path string `json:"path"`
	// Rel is the skill directory relative to the repo root; "." for a repo
	// that is itself a single skill.
	Rel string `json:"rel"`
}

// Discover finds every skill under root. Anything below a dot-prefixed
// directory is ignored. Two skills with the same directory name fail with
// ErrDuplicateSkill since they would link to the same destination.
func Discover(root string) ([]Skill, error) {
	var skills []Skill
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != SkillFile {
			return nil
		}
		dir := filepath.Dir(p)
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			return err
		}
		skills = append(skills, Skill{Name: filepath.Base(dir), Path: dir, Rel: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSkillNotFound, root)
		}
		return nil, err
	}
	sort.Slice(skills, func(i, j int) bool {
		if skills[i].Name != skills[j].Name {
			return skills[i].Name < skills[j].Name
		}
		return skills[i].Rel < skills[j].Rel
	})
	for i := 1; i < len(skills); i++ {
		if skills[i].Name == skills[i-1].Name {
			return nil, fmt.Errorf("%w: %q at %s and %s", ErrDuplicateSkill, skills[i].Name, skills[i-1].Rel, skills[i].Rel)
		}
	}
	return skills, nil
}
