package validate

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// openReference checks that a resolved reference is reachable. It is a
// blocking call with no internal timeout; a hang stalls only the
// worker processing this label.
func openReference(ref *url.URL) error {
	switch ref.Scheme {
	case "", "file":
		f, err := os.Open(filepath.FromSlash(ref.Path))
		if err != nil {
			return err
		}
		return f.Close()
	case "http", "https":
		resp, err := http.Get(ref.String())
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("%s: %s", ref, resp.Status)
		}
		return nil
	default:
		return fmt.Errorf("unsupported scheme %q in reference %s", ref.Scheme, ref)
	}
}

// md5Of computes the MD5 hex digest of the resource at ref.
func md5Of(ref *url.URL) (string, error) {
	r, err := readerFor(ref)
	if err != nil {
		return "", err
	}
	defer r.Close()
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sizeOf returns the byte length of the resource at ref.
func sizeOf(ref *url.URL) (int64, error) {
	switch ref.Scheme {
	case "", "file":
		fi, err := os.Stat(filepath.FromSlash(ref.Path))
		if err != nil {
			return 0, err
		}
		return fi.Size(), nil
	default:
		r, err := readerFor(ref)
		if err != nil {
			return 0, err
		}
		defer r.Close()
		return io.Copy(io.Discard, r)
	}
}

func readerFor(ref *url.URL) (io.ReadCloser, error) {
	switch ref.Scheme {
	case "", "file":
		return os.Open(filepath.FromSlash(ref.Path))
	case "http", "https":
		resp, err := http.Get(ref.String())
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("%s: %s", ref, resp.Status)
		}
		return resp.Body, nil
	default:
		return nil, fmt.Errorf("unsupported scheme %q in reference %s", ref.Scheme, ref)
	}
}

// caseMismatch reports whether the trailing component of a reachable
// file reference differs in case from the name actually on disk. Only
// file references are checked; other schemes have no canonical casing.
func caseMismatch(ref *url.URL) (bool, error) {
	if ref.Scheme != "" && ref.Scheme != "file" {
		return false, nil
	}
	p := filepath.FromSlash(ref.Path)
	name := filepath.Base(p)
	entries, err := os.ReadDir(filepath.Dir(p))
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Name() == name {
			return false, nil
		}
	}
	for _, e := range entries {
		if strings.EqualFold(e.Name(), name) {
			return true, nil
		}
	}
	// The open succeeded some other way (e.g. a case-insensitive
	// overlay); treat an untraceable name as a mismatch.
	return true, nil
}

// parentURL returns the URL of the directory containing ref.
func parentURL(ref *url.URL) *url.URL {
	u := *ref
	if strings.HasSuffix(u.Path, "/") {
		u.Path = path.Dir(strings.TrimSuffix(u.Path, "/"))
	} else {
		u.Path = path.Dir(u.Path)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return &u
}
