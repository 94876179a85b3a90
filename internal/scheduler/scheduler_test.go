package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lights-controller/internal/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []core.AppStateChange
	err  error
}

func (r *recordingSender) Send(_ context.Context, c core.AppStateChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, c)
	return nil
}

func (r *recordingSender) changes() []core.AppStateChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.AppStateChange(nil), r.sent...)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want core.AppStateChange
	}{
		{"on", core.OnOff{On: true}},
		{"OFF", core.OnOff{On: false}},
		{"  mode 3 ", core.ModeSelect{Index: 3}},
		{"stop", core.Stop{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCommand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "mode", "mode x", "mode -1", "on now", "power on", "lua x"} {
		t.Run("reject "+bad, func(t *testing.T) {
			_, err := ParseCommand(bad)
			assert.ErrorIs(t, err, ErrInvalidCommand)
		})
	}
}

func TestAddListRemove(t *testing.T) {
	file := filepath.Join(t.TempDir(), "schedules.json")
	s, err := New(&recordingSender{}, file)
	require.NoError(t, err)

	a, err := s.Add("0 7 * * *", "on")
	require.NoError(t, err)
	b, err := s.Add("30 23 * * *", "off")
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, a, list[0])
	assert.Equal(t, b, list[1])

	require.NoError(t, s.Remove(a.ID))
	assert.Equal(t, []Entry{b}, s.List())

	assert.ErrorIs(t, s.Remove(a.ID), ErrNotFound)
}

func TestAddRejectsBadInput(t *testing.T) {
	s, err := New(&recordingSender{}, "")
	require.NoError(t, err)

	_, err = s.Add("not a spec", "on")
	assert.Error(t, err)

	_, err = s.Add("* * * * *", "explode")
	assert.ErrorIs(t, err, ErrInvalidCommand)

	assert.Empty(t, s.List())
}

func TestPersistence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "schedules.json")
	s, err := New(&recordingSender{}, file)
	require.NoError(t, err)
	_, err = s.Add("0 7 * * *", "mode 2")
	require.NoError(t, err)
	_, err = s.Add("@hourly", "off")
	require.NoError(t, err)

	reloaded, err := New(&recordingSender{}, file)
	require.NoError(t, err)
	list := reloaded.List()
	require.Len(t, list, 2)
	assert.Equal(t, "0 7 * * *", list[0].Spec)
	assert.Equal(t, "mode 2", list[0].Command)
	assert.Equal(t, "@hourly", list[1].Spec)
}

func TestLoadSkipsBrokenEntries(t *testing.T) {
	file := filepath.Join(t.TempDir(), "schedules.json")
	data := `[
		{"spec": "0 7 * * *", "command": "on"},
		{"spec": "bogus", "command": "on"},
		{"spec": "0 8 * * *", "command": "pattern rainbow"}
	]`
	require.NoError(t, os.WriteFile(file, []byte(data), 0o644))

	s, err := New(&recordingSender{}, file)
	require.NoError(t, err)
	require.Len(t, s.List(), 1)
	assert.Equal(t, "on", s.List()[0].Command)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "schedules.json")
	require.NoError(t, os.WriteFile(file, []byte("{"), 0o644))

	_, err := New(&recordingSender{}, file)
	assert.Error(t, err)
}

func TestExecuteSendsChange(t *testing.T) {
	sender := &recordingSender{}
	s, err := New(sender, "")
	require.NoError(t, err)

	s.execute("mode 1")
	s.execute("garbage")
	s.execute("on")

	assert.Equal(t, []core.AppStateChange{core.ModeSelect{Index: 1}, core.OnOff{On: true}}, sender.changes())
}

func TestStartStop(t *testing.T) {
	s, err := New(&recordingSender{}, "")
	require.NoError(t, err)
	s.Start()
	s.Stop()
}
