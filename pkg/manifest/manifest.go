// Package manifest reads checksum manifests: flat md5sum-style files
// listing an expected MD5 hex digest and a path per line. Paths are
// resolved against a base URI so the resulting map is keyed by the
// same absolute URIs the validation rules build for references.
package manifest

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var digestPattern = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

// Load parses the manifest at path. Lines have the form
// "<md5> <path>"; a leading '*' on the path (binary-mode marker) is
// accepted, blank lines and '#' comments are skipped. Relative paths
// are resolved against base.
func Load(path string, base *url.URL) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening checksum manifest: %w", err)
	}
	defer f.Close()

	entries := make(map[string]string)
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%s:%d: malformed manifest line %q", path, lineNo, line)
		}
		digest := strings.ToLower(fields[0])
		if !digestPattern.MatchString(digest) {
			return nil, fmt.Errorf("%s:%d: %q is not an MD5 hex digest", path, lineNo, fields[0])
		}
		target := strings.TrimPrefix(strings.Join(fields[1:], " "), "*")
		uri, err := resolveEntry(base, target)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		entries[uri] = digest
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading checksum manifest: %w", err)
	}
	return entries, nil
}

func resolveEntry(base *url.URL, target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("malformed manifest entry %q: %w", target, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if filepath.IsAbs(target) {
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(target)}).String(), nil
	}
	if base == nil {
		abs, err := filepath.Abs(target)
		if err != nil {
			return "", err
		}
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
	}
	return base.ResolveReference(u).String(), nil
}
