package mode

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Settings persists per-mode state as <dir>/<name>.toml. A zero Settings
// stores nothing.
type Settings struct {
	Dir string
}

func (s Settings) path(name string) string {
	return filepath.Join(s.Dir, name+".toml")
}

// Load decodes the named settings into v. A missing file leaves v unchanged
// and is not an error.
func (s Settings) Load(name string, v any) error {
	if s.Dir == "" {
		return nil
	}
	b, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s settings: %w", name, err)
	}
	return nil
}

func (s Settings) Save(name string, v any) error {
	if s.Dir == "" {
		return nil
	}
	b, err := toml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s settings: %w", name, err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path(name), b, 0o644)
}
