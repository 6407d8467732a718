package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// environment layers explicit overrides over the process environment over a dotenv file.
// Typed getters record the config field of every value that fails to parse so Load can
// reject it instead of silently using the default.
type environment struct {
	layers    []map[string]string
	malformed []string
}

func newEnvironment(options loaderOptions) (*environment, error) {
	dotenv, err := readDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	env := &environment{}
	if options.envMap != nil {
		env.layers = append(env.layers, options.envMap)
	}
	if options.useSystemEnv {
		env.layers = append(env.layers, processEnv())
	}
	if dotenv != nil {
		env.layers = append(env.layers, dotenv)
	}
	return env, nil
}

// values flattens the layers, highest precedence last applied.
func (e *environment) values() map[string]string {
	out := make(map[string]string)
	for i := len(e.layers) - 1; i >= 0; i-- {
		for key, value := range e.layers[i] {
			out[key] = value
		}
	}
	return out
}

func (e *environment) raw(key string) (string, bool) {
	for _, layer := range e.layers {
		if value, ok := layer[key]; ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

func (e *environment) str(key, fallback string) string {
	if value, ok := e.raw(key); ok {
		return value
	}
	return fallback
}

func (e *environment) lower(key, fallback string) string {
	return strings.ToLower(e.str(key, fallback))
}

func (e *environment) duration(field, key string, fallback time.Duration) time.Duration {
	value, ok := e.raw(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		e.malformed = append(e.malformed, field)
		return fallback
	}
	return d
}

func (e *environment) integer(field, key string, fallback int) int {
	value, ok := e.raw(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		e.malformed = append(e.malformed, field)
		return fallback
	}
	return n
}

func (e *environment) float(field, key string, fallback float64) float64 {
	value, ok := e.raw(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.malformed = append(e.malformed, field)
		return fallback
	}
	return f
}

func (e *environment) flag(field, key string, fallback bool) bool {
	value, ok := e.raw(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	e.malformed = append(e.malformed, field)
	return fallback
}

// list splits a comma separated value into lower-cased, non-blank entries.
func (e *environment) list(key string) []string {
	value, ok := e.raw(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func processEnv() map[string]string {
	out := make(map[string]string)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if key = strings.TrimSpace(key); ok && key != "" {
			out[key] = value
		}
	}
	return out
}

// readDotEnv parses KEY=VALUE lines; a missing file is not an error.
func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if key = strings.TrimSpace(key); !ok || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", path, err)
	}
	return values, nil
}
