package domain

import (
	"strconv"
	"strings"
)

// CompareVersions orders dotted release identifiers by pairwise integer
// value, so "9.10.0" sorts after "9.9.2". Missing components count as
// zero; non-numeric components count as zero as well.
func CompareVersions(a, b string) int {
	as := strings.Split(strings.TrimSpace(a), ".")
	bs := strings.Split(strings.TrimSpace(b), ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av := versionPart(as, i)
		bv := versionPart(bs, i)
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil {
		return 0
	}
	return v
}

// MinorVersion reduces a dotted release identifier to its major.minor
// prefix ("9.3.0" -> "9.3"). Identifiers with fewer than two components
// are returned unchanged.
func MinorVersion(release string) string {
	parts := strings.Split(release, ".")
	if len(parts) < 2 {
		return release
	}
	return parts[0] + "." + parts[1]
}
