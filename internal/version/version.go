package version

import (
	"strconv"
	"strings"
)

// Tuple is a normalized (major, minor, patch) version. Pods report
// free-form version strings; anything unparseable maps to the zero
// tuple so comparisons stay total.
type Tuple [3]int

// Zero is the tuple garbled version strings normalize to.
var Zero = Tuple{0, 0, 0}

// Parse normalizes a free-form version string into a Tuple. Leading
// "v" prefixes and trailing pre-release suffixes ("0.8.0-rc1") are
// tolerated; missing segments default to 0.
func Parse(s string) Tuple {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "v"))
	if s == "" {
		return Zero
	}

	var t Tuple
	parts := strings.SplitN(s, ".", 3)
	for i, part := range parts {
		// Strip anything after the first non-digit run ("0-rc1" -> "0").
		end := len(part)
		for j, r := range part {
			if r < '0' || r > '9' {
				end = j
				break
			}
		}
		n, err := strconv.Atoi(part[:end])
		if err != nil {
			return Zero
		}
		t[i] = n
	}
	return t
}

// Compare returns -1, 0 or 1 ordering a against b.
func Compare(a, b Tuple) int {
	for i := 0; i < 3; i++ {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	return 0
}

// MajorMinor returns the "major.minor" prefix used for compliance
// checks against the accepted version set.
func (t Tuple) MajorMinor() string {
	return strconv.Itoa(t[0]) + "." + strconv.Itoa(t[1])
}

// String renders the tuple back as "major.minor.patch".
func (t Tuple) String() string {
	return strconv.Itoa(t[0]) + "." + strconv.Itoa(t[1]) + "." + strconv.Itoa(t[2])
}
