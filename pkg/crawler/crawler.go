package crawler

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Crawler enumerates candidate target files under a directory,
// keeping those whose name matches any of its wildcard filters.
// Matching is case-insensitive, the way archive deliveries mix casing.
type Crawler struct {
	filters []string
}

// New creates a crawler with the given wildcard file-name filters. No
// filters means every regular file is a candidate.
func New(filters ...string) *Crawler {
	return &Crawler{filters: filters}
}

// Match reports whether a file name passes the filters.
func (c *Crawler) Match(name string) bool {
	if len(c.filters) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, f := range c.filters {
		ok, err := filepath.Match(strings.ToLower(f), lower)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// Crawl walks root and returns the matching file paths in sorted
// order, so runs over the same tree discover targets deterministically.
func (c *Crawler) Crawl(root string) ([]string, error) {
	var targets []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if c.Match(d.Name()) {
			targets = append(targets, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("crawling %s: %w", root, err)
	}
	sort.Strings(targets)
	return targets, nil
}
