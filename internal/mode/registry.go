package mode

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"lights-controller/internal/logging"
)

var ErrNoSuchMode = errors.New("no such mode")

// Registry keeps modes in registration order and remembers the selection
// across restarts through an IndexStore.
type Registry struct {
	modes    []Mode
	selected int
	store    IndexStore
	log      zerolog.Logger
}

// NewRegistry restores the persisted selection. An unreadable or out of
// range index falls back to 0 with a warning.
func NewRegistry(store IndexStore, modes ...Mode) *Registry {
	if store == nil {
		store = &MemoryIndexStore{}
	}
	r := &Registry{
		modes: modes,
		store: store,
		log:   logging.Component("registry"),
	}

	idx, err := store.LoadIndex()
	switch {
	case err != nil:
		r.log.Warn().Err(err).Msg("could not load active mode, using first mode")
	case idx < 0 || idx >= len(modes):
		r.log.Warn().Int("index", idx).Int("modes", len(modes)).Msg("stored active mode out of range, using first mode")
	default:
		r.selected = idx
	}
	return r
}

func (r *Registry) Len() int { return len(r.modes) }

func (r *Registry) Names() []string {
	names := make([]string, len(r.modes))
	for i, m := range r.modes {
		names[i] = m.Name()
	}
	return names
}

func (r *Registry) Selected() int { return r.selected }

// Active returns the selected mode, or nil when nothing is registered.
func (r *Registry) Active() Mode {
	if len(r.modes) == 0 {
		return nil
	}
	return r.modes[r.selected]
}

// Select switches the selection and persists it. The selection changes even
// when saving fails; the save error is returned for logging.
func (r *Registry) Select(i int) error {
	if i < 0 || i >= len(r.modes) {
		return fmt.Errorf("%w: index %d of %d", ErrNoSuchMode, i, len(r.modes))
	}
	r.selected = i
	if err := r.store.SaveIndex(i); err != nil {
		return fmt.Errorf("persist active mode: %w", err)
	}
	return nil
}
