// Package scheduler runs persisted cron jobs that switch the lights.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"lights-controller/internal/core"
	"lights-controller/internal/logging"
)

const sendTimeout = 5 * time.Second

var (
	ErrNotFound       = errors.New("schedule not found")
	ErrInvalidCommand = errors.New("invalid schedule command")
)

// Sender accepts state changes. lights.Remote satisfies it.
type Sender interface {
	Send(ctx context.Context, change core.AppStateChange) error
}

// Entry is one saved schedule. ID is assigned at load time and is not
// stable across restarts.
type Entry struct {
	ID      int    `json:"id"`
	Spec    string `json:"spec"`
	Command string `json:"command"`
}

type storedEntry struct {
	Spec    string `json:"spec"`
	Command string `json:"command"`
}

// Scheduler owns the cron runner and the schedules file.
type Scheduler struct {
	cron   *cron.Cron
	sender Sender
	file   string
	log    zerolog.Logger

	mu      sync.RWMutex
	entries map[cron.EntryID]storedEntry
}

// New creates a scheduler and loads file. A missing file is not an error.
// Entries that no longer parse are skipped with a warning.
func New(sender Sender, file string) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		sender:  sender,
		file:    file,
		log:     logging.Component("scheduler"),
		entries: make(map[cron.EntryID]storedEntry),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("schedules", len(s.List())).Msg("scheduler started")
}

// Stop halts the runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// ParseCommand turns a schedule command into a state change. Accepted forms
// are "on", "off", "mode <index>" and "stop".
func ParseCommand(command string) (core.AppStateChange, error) {
	fields := strings.Fields(strings.ToLower(command))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCommand)
	}
	switch fields[0] {
	case "on", "off":
		if len(fields) != 1 {
			break
		}
		return core.OnOff{On: fields[0] == "on"}, nil
	case "stop":
		if len(fields) != 1 {
			break
		}
		return core.Stop{}, nil
	case "mode":
		if len(fields) != 2 {
			break
		}
		idx, err := strconv.Atoi(fields[1])
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: bad mode index %q", ErrInvalidCommand, fields[1])
		}
		return core.ModeSelect{Index: idx}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, command)
}

// Add validates and registers a schedule, then persists the set.
func (s *Scheduler) Add(spec, command string) (Entry, error) {
	if _, err := ParseCommand(command); err != nil {
		return Entry{}, err
	}
	e := storedEntry{Spec: strings.TrimSpace(spec), Command: strings.TrimSpace(command)}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(e.Spec, func() { s.execute(e.Command) })
	if err != nil {
		return Entry{}, fmt.Errorf("invalid cron spec %q: %w", e.Spec, err)
	}
	s.entries[id] = e
	if err := s.save(); err != nil {
		return Entry{ID: int(id), Spec: e.Spec, Command: e.Command}, err
	}
	s.log.Info().Int("id", int(id)).Str("spec", e.Spec).Str("command", e.Command).Msg("schedule added")
	return Entry{ID: int(id), Spec: e.Spec, Command: e.Command}, nil
}

// Remove deletes a schedule by id.
func (s *Scheduler) Remove(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID := cron.EntryID(id)
	if _, ok := s.entries[entryID]; !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	s.cron.Remove(entryID)
	delete(s.entries, entryID)
	s.log.Info().Int("id", id).Msg("schedule removed")
	return s.save()
}

// List returns the schedules ordered by id.
func (s *Scheduler) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, Entry{ID: int(id), Spec: e.Spec, Command: e.Command})
	}
	slices.SortFunc(out, func(a, b Entry) int { return a.ID - b.ID })
	return out
}

func (s *Scheduler) execute(command string) {
	change, err := ParseCommand(command)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled command rejected")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := s.sender.Send(ctx, change); err != nil {
		s.log.Warn().Err(err).Str("command", command).Msg("scheduled command not delivered")
		return
	}
	s.log.Info().Str("command", command).Msg("scheduled command sent")
}

// save writes the schedule list atomically. Callers hold mu.
func (s *Scheduler) save() error {
	if s.file == "" {
		return nil
	}
	list := make([]storedEntry, 0, len(s.entries))
	ids := make([]cron.EntryID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		list = append(list, s.entries[id])
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schedules: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.file), ".schedules-*")
	if err != nil {
		return fmt.Errorf("save schedules: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save schedules: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save schedules: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.file); err != nil {
		return fmt.Errorf("save schedules: %w", err)
	}
	return nil
}

func (s *Scheduler) load() error {
	if s.file == "" {
		return nil
	}
	data, err := os.ReadFile(s.file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schedules: %w", err)
	}

	var list []storedEntry
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("decode schedules %s: %w", s.file, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range list {
		if _, err := ParseCommand(e.Command); err != nil {
			s.log.Warn().Err(err).Str("spec", e.Spec).Msg("skipping saved schedule")
			continue
		}
		id, err := s.cron.AddFunc(e.Spec, func() { s.execute(e.Command) })
		if err != nil {
			s.log.Warn().Err(err).Str("spec", e.Spec).Msg("skipping saved schedule")
			continue
		}
		s.entries[id] = e
	}
	s.log.Debug().Int("count", len(s.entries)).Str("file", s.file).Msg("schedules loaded")
	return nil
}
