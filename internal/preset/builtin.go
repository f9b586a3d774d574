package preset

import "sort"

func allow(patterns ...string) []Rule {
	out := make([]Rule, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, Rule{Pattern: p, Effect: Allow})
	}
	return out
}

var builtins = map[string][]Rule{
	"developer": allow(
		"Bash(git *)",
		"Bash(npm *)",
		"Bash(npx *)",
		"Bash(yarn *)",
		"Bash(pnpm *)",
		"Bash(uv *)",
		"Bash(pip *)",
		"Bash(python *)",
		"Bash(node *)",
		"Bash(make *)",
		"Bash(cargo *)",
		"Bash(go *)",
	),
	"git": allow(
		"Bash(git *)",
		"Bash(gh *)",
	),
	"node": allow(
		"Bash(npm *)",
		"Bash(npx *)",
		"Bash(yarn *)",
		"Bash(pnpm *)",
		"Bash(node *)",
	),
	"python": allow(
		"Bash(uv *)",
		"Bash(pip *)",
		"Bash(python *)",
		"Bash(pytest *)",
		"Bash(ruff *)",
	),
	"docker": allow(
		"Bash(docker *)",
		"Bash(docker-compose *)",
	),
	"k8s": allow(
		"Bash(kubectl *)",
		"Bash(helm *)",
	),
}

// Builtin returns a copy of the named builtin preset.
func Builtin(name string) (Preset, bool) {
	rules, ok := builtins[name]
	if !ok {
		return Preset{}, false
	}
	return Preset{Name: name, Scope: ScopeBuiltin, Rules: append([]Rule(nil), rules...)}, true
}

func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
