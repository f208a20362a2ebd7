package files

import (
	"fmt"
	"strings"
)

// UniqueName returns name when no sibling uses it, otherwise the first free
// "stem (i).ext" for i = 1, 2, ...
func UniqueName(name string, siblings []string) string {
	used := make(map[string]struct{}, len(siblings))
	for _, s := range siblings {
		used[s] = struct{}{}
	}
	if _, ok := used[name]; !ok {
		return name
	}

	stem, ext := splitExt(name)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if _, ok := used[candidate]; !ok {
			return candidate
		}
	}
}

// splitExt splits at the last dot. A leading dot starts the stem, not an
// extension.
func splitExt(name string) (string, string) {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}
