// Package scripts manages the Lua files run by the Script mode.
package scripts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var ErrInvalidName = errors.New("invalid script name")

// Library is a directory of .lua files.
type Library struct {
	Dir string
}

// CleanName checks for directory traversal and a .lua extension.
func CleanName(name string) (string, error) {
	if !strings.HasSuffix(name, ".lua") {
		return "", fmt.Errorf("%w: %q must end with .lua", ErrInvalidName, name)
	}
	clean := filepath.Base(name)
	if clean != name || clean == ".lua" || strings.Contains(clean, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return clean, nil
}

// Path returns the location of name inside the library, creating the
// directory if needed.
func (l Library) Path(name string) (string, error) {
	clean, err := CleanName(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create scripts directory: %w", err)
	}
	return filepath.Join(l.Dir, clean), nil
}

func (l Library) Read(name string) (string, error) {
	path, err := l.Path(name)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (l Library) Save(name, code string) error {
	path, err := l.Path(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(code), 0o644)
}

func (l Library) Delete(name string) error {
	path, err := l.Path(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// List returns the .lua file names in the library, sorted. A missing
// directory yields an empty list.
func (l Library) List() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
