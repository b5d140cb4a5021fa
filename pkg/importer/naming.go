package importer

import (
	"fmt"
	"strings"
)

const importedSuffix = " (Imported)"

// ResolveName returns name unchanged when no existing workflow uses it. Otherwise it appends
// " (Imported)", then " (Imported 2)", " (Imported 3)", ... until the name is free.
// Comparison is case-insensitive and ignores surrounding whitespace.
func ResolveName(name string, existing []string) string {
	taken := make(map[string]bool, len(existing))
	for _, other := range existing {
		taken[normalizeName(other)] = true
	}

	if !taken[normalizeName(name)] {
		return name
	}

	candidate := name + importedSuffix
	for n := 2; taken[normalizeName(candidate)]; n++ {
		candidate = fmt.Sprintf("%s (Imported %d)", name, n)
	}

	return candidate
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
