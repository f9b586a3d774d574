// Package detect guesses which builtin presets suit a project from marker
// files in its root directory.
package detect

import (
	"os"
	"path/filepath"
)

type Detection struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

var checks = []struct {
	name    string
	markers []string
}{
	{name: "git", markers: []string{".git"}},
	{name: "node", markers: []string{"package.json"}},
	{name: "python", markers: []string{"pyproject.toml", "setup.py", "requirements.txt", "Pipfile"}},
	{name: "docker", markers: []string{"Dockerfile", "docker-compose.yml", "docker-compose.yaml", "compose.yml"}},
	{name: "k8s", markers: []string{"k8s", "kubernetes", "helm", "Chart.yaml"}},
}

// Detect reports one Detection per matching project type, in a fixed order.
func Detect(dir string) []Detection {
	out := make([]Detection, 0, len(checks))
	for _, c := range checks {
		for _, m := range c.markers {
			path := filepath.Join(dir, m)
			if _, err := os.Stat(path); err == nil {
				out = append(out, Detection{Name: c.name, Path: path, Reason: m + " exists"})
				break
			}
		}
	}
	return out
}

// ProjectTypes returns the names of the detected project types.
func ProjectTypes(dir string) []string {
	found := Detect(dir)
	names := make([]string, 0, len(found))
	for _, d := range found {
		names = append(names, d.Name)
	}
	return names
}
