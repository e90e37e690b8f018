package discovery

import (
	"strconv"
	"strings"
)

// CompareVersions orders two version strings. It returns a negative number
// when a < b, zero when equal and a positive number when a > b.
//
// Plain integers compare numerically. Dotted releases ("1.10.0",
// "2.0-beta+3") compare component by component; a release that is a prefix of
// the other is lower, a pre-release is lower than the same release without
// one, and build numbers break the remaining ties. Anything else compares
// lexically.
func CompareVersions(a, b string) int {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if x, errA := strconv.ParseInt(a, 10, 64); errA == nil {
		if y, errB := strconv.ParseInt(b, 10, 64); errB == nil {
			return cmpInt(x, y)
		}
	}
	va, okA := parseRelease(a)
	vb, okB := parseRelease(b)
	if okA && okB {
		return va.compare(vb)
	}
	return strings.Compare(a, b)
}

type release struct {
	parts []int64
	pre   string
	build string
}

// parseRelease accepts "N(.N)*", optionally followed by "-pre" and "+build".
func parseRelease(s string) (release, bool) {
	var r release
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s, r.build = s[:i], s[i+1:]
	}
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s, r.pre = s[:i], s[i+1:]
		if r.pre == "" {
			return release{}, false
		}
	}
	if s == "" {
		return release{}, false
	}
	for _, p := range strings.Split(s, ".") {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return release{}, false
		}
		r.parts = append(r.parts, n)
	}
	return r, true
}

func (r release) compare(o release) int {
	for i := 0; i < len(r.parts) && i < len(o.parts); i++ {
		if c := cmpInt(r.parts[i], o.parts[i]); c != 0 {
			return c
		}
	}
	if c := cmpInt(int64(len(r.parts)), int64(len(o.parts))); c != 0 {
		return c
	}
	switch {
	case r.pre == "" && o.pre != "":
		return 1
	case r.pre != "" && o.pre == "":
		return -1
	case r.pre != o.pre:
		return compareIdent(r.pre, o.pre)
	}
	return compareIdent(r.build, o.build)
}

// compareIdent compares numerically when both sides are integers.
func compareIdent(a, b string) int {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return cmpInt(x, y)
	}
	return strings.Compare(a, b)
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
