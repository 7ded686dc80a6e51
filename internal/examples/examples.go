// Package examples bundles the sample scripts behind `lmb example`, a
// companion surface for exploring the runtime without writing a script
// file first.
package examples

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed scripts/*.lua
var scriptsFS embed.FS

// Names returns the bundled example names, sorted.
func Names() ([]string, error) {
	entries, err := scriptsFS.ReadDir("scripts")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".lua"))
	}
	sort.Strings(names)
	return names, nil
}

// Source returns the source of the named bundled example.
func Source(name string) (string, error) {
	b, err := scriptsFS.ReadFile("scripts/" + name + ".lua")
	if err != nil {
		return "", fmt.Errorf("unknown example %q", name)
	}
	return string(b), nil
}
