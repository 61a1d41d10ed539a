package scm

import (
	"fmt"
	"strings"
)

const versionProperty = "version"

// readProperty returns the value of key in properties-formatted content.
func readProperty(content, key string) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		k, v, ok := splitProperty(line)
		if ok && k == key {
			return v, true
		}
	}
	return "", false
}

// replaceProperty rewrites the first key entry, or appends one, leaving every other line untouched.
func replaceProperty(content, key, value string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		k, _, ok := splitProperty(line)
		if ok && k == key {
			lines[i] = fmt.Sprintf("%s=%s", key, value)
			return strings.Join(lines, "\n")
		}
	}
	entry := fmt.Sprintf("%s=%s\n", key, value)
	if content == "" || strings.HasSuffix(content, "\n") {
		return content + entry
	}
	return content + "\n" + entry
}

func splitProperty(line string) (string, string, bool) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(line, "\r"))
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "!") {
		return "", "", false
	}
	i := strings.IndexAny(trimmed, "=:")
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(trimmed[:i]), strings.TrimSpace(trimmed[i+1:]), true
}
