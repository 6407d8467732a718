package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// fallbackFile serves secrets from a local "secret://name[?version=N]=value" file when
// Secret Manager is unreachable. It is read once, on first use; a missing file is empty.
type fallbackFile struct {
	path   string
	once   sync.Once
	values map[string]string
	err    error
}

func (f *fallbackFile) lookup(ref Reference, version string) (string, bool, error) {
	f.once.Do(f.load)
	if f.err != nil {
		return "", false, f.err
	}
	if value, ok := f.values[cacheKey(ref.Canonical, version)]; ok {
		return value, true, nil
	}
	value, ok := f.values[ref.Canonical]
	return value, ok, nil
}

func (f *fallbackFile) load() {
	f.values = make(map[string]string)
	if f.path == "" {
		return
	}
	path := f.path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		f.err = fmt.Errorf("secrets: unable to open fallback file %s: %w", path, err)
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := cutEntry(line)
		if !ok {
			continue
		}
		ref, err := ParseReference(key)
		if err != nil {
			continue
		}
		if ref.Version == "" {
			f.values[ref.Canonical] = value
			f.values[cacheKey(ref.Canonical, latestVersion)] = value
			continue
		}
		f.values[cacheKey(ref.Canonical, ref.Version)] = value
	}
	if err := scanner.Err(); err != nil {
		f.err = fmt.Errorf("secrets: failed reading %s: %w", path, err)
	}
}

// cutEntry splits "secret://a/b?version=2=value" after the version parameter.
func cutEntry(line string) (string, string, bool) {
	offset := 0
	if q := strings.Index(line, "?"); q >= 0 && q < strings.Index(line, "=") {
		if eq := strings.Index(line[q:], "="); eq >= 0 {
			offset = q + eq + 1
		}
	}
	idx := strings.Index(line[offset:], "=")
	if idx < 0 {
		return "", "", false
	}
	key := strings.TrimSpace(line[:offset+idx])
	value := strings.TrimSpace(line[offset+idx+1:])
	return key, value, key != ""
}
