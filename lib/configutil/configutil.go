// Package configutil reads json5 configuration files with an optional
// ".local" override next to them. The base file is checked in; the
// local variant carries machine-specific values and secrets and stays
// out of version control.
package configutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// localVariant derives the override path for a config file:
// "config.json5" becomes "config.local.json5" in the same directory.
func localVariant(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(filepath.Dir(name), stem+".local"+ext)
}

// ReadConfig decodes name and merges its local variant over it, local
// values winning. Either file may be absent; when both are,
// os.ErrNotExist comes back so callers can distinguish "no config"
// from a broken one.
func ReadConfig[T any](name string) (T, error) {
	var out T
	found := false

	raw, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(raw) > 0 {
		err = json5.Unmarshal(raw, &out)
		if err != nil {
			return out, err
		}
		found = true
	}

	localName := localVariant(name)
	raw, err = os.ReadFile(localName)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(raw) > 0 {
		var local T
		err = json5.Unmarshal(raw, &local)
		if err != nil {
			return out, err
		}
		err = mergo.Merge(&out, local, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Info("applied local config overrides", "file", localName)
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively looks for name in the working directory and then in
// each parent up to the filesystem root, reading the first hit with
// ReadConfig. Lets binaries and tests run from any subdirectory of a
// checkout.
func ReadRecursively[T any](name string) (T, error) {
	var zero T

	dir, err := os.Getwd()
	if err != nil {
		return zero, err
	}
	for {
		config, err := ReadConfig[T](filepath.Join(dir, name))
		if !os.IsNotExist(err) {
			return config, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return zero, os.ErrNotExist
		}
		dir = parent
	}
}
