package discovery

import (
	"bufio"
	"io"
	"strings"
)

// parseProperties reads a flat properties file: "key=value", "key: value" or
// "key value" lines, '#' and '!' comments, and '\' line continuations.
// Later keys override earlier ones.
func parseProperties(r io.Reader) (map[string]string, error) {
	props := make(map[string]string)
	sc := bufio.NewScanner(r)
	var pending strings.Builder
	for sc.Scan() {
		line := strings.TrimLeft(sc.Text(), " \t\f")
		if pending.Len() == 0 && (line == "" || line[0] == '#' || line[0] == '!') {
			continue
		}
		if continues(line) {
			pending.WriteString(line[:len(line)-1])
			continue
		}
		pending.WriteString(line)
		key, value := splitProperty(pending.String())
		pending.Reset()
		if key != "" {
			props[key] = value
		}
	}
	if pending.Len() > 0 {
		if key, value := splitProperty(pending.String()); key != "" {
			props[key] = value
		}
	}
	return props, sc.Err()
}

// continues reports an odd number of trailing backslashes.
func continues(line string) bool {
	n := 0
	for i := len(line) - 1; i >= 0 && line[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

func splitProperty(line string) (string, string) {
	end := strings.IndexAny(line, "=: \t\f")
	if end < 0 {
		return strings.TrimSpace(line), ""
	}
	key := line[:end]
	rest := strings.TrimLeft(line[end:], " \t\f")
	if rest != "" && (rest[0] == '=' || rest[0] == ':') {
		rest = rest[1:]
	}
	return strings.TrimSpace(key), strings.TrimSpace(rest)
}
