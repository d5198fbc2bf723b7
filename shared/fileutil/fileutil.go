// Package fileutil defines utilities for the atlas' on-disk layout.
package fileutil

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/shared/hashutil"
)

// ExpandPath expands a file path: ~ to the user's home directory, environment
// variables, and a relative path to absolute.
func ExpandPath(p string) (string, error) {
	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, "~\\") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = home + p[1:]
	}
	return filepath.Abs(filepath.Clean(os.ExpandEnv(p)))
}

// MkdirAll takes in a path, expands it if necessary, and creates the directory
// accordingly with standardized, owner-only permissions.
func MkdirAll(dirPath string) error {
	expanded, err := ExpandPath(dirPath)
	if err != nil {
		return err
	}
	return os.MkdirAll(expanded, 0700)
}

// WriteFile is the static-permission counterpart of ioutil.WriteFile.
func WriteFile(file string, data []byte) error {
	expanded, err := ExpandPath(file)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(expanded, data, 0600)
}

// FileExists returns true if a file is not a directory and exists at the
// specified path.
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// HashDir computes a reproducible digest of a directory: SHA-256 over the
// sorted relative paths and file contents. Two directories with identical
// trees hash identically regardless of creation order or mtimes.
func HashDir(dirPath string) ([32]byte, error) {
	var entries []string
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dirPath, path)
		if err != nil {
			return err
		}
		entries = append(entries, rel)
		return nil
	})
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "could not walk directory")
	}
	sort.Strings(entries)

	var material []byte
	for _, rel := range entries {
		data, err := ioutil.ReadFile(filepath.Join(dirPath, rel))
		if err != nil {
			return [32]byte{}, errors.Wrapf(err, "could not read %s", rel)
		}
		sum := hashutil.HashSHA256(data)
		material = append(material, []byte(rel)...)
		material = append(material, 0)
		material = append(material, sum[:]...)
	}
	return hashutil.HashSHA256(material), nil
}
