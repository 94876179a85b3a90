package lights

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lights-controller/internal/core"
)

func TestRemoteSend(t *testing.T) {
	ch := make(chan core.AppStateChange, 4)
	done := make(chan struct{})
	r := NewRemote(ch, done)

	require.NoError(t, r.SetOn(context.Background(), true))
	require.NoError(t, r.SelectMode(context.Background(), 2))
	require.NoError(t, r.ChangeParam(context.Background(), core.Param{Name: "x", Value: core.ButtonValue()}))
	require.NoError(t, r.Stop(context.Background()))

	assert.Equal(t, core.OnOff{On: true}, <-ch)
	assert.Equal(t, core.ModeSelect{Index: 2}, <-ch)
	assert.Equal(t, core.ChangeParam{Param: core.Param{Name: "x", Value: core.ButtonValue()}}, <-ch)
	assert.Equal(t, core.Stop{}, <-ch)
}

func TestRemoteBlocksUntilContextDone(t *testing.T) {
	ch := make(chan core.AppStateChange)
	r := NewRemote(ch, make(chan struct{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.SetOn(ctx, true), context.DeadlineExceeded)
}

func TestRemoteAfterStop(t *testing.T) {
	ch := make(chan core.AppStateChange, 1)
	done := make(chan struct{})
	r := NewRemote(ch, done)
	close(done)

	assert.ErrorIs(t, r.SetOn(context.Background(), true), ErrStopped)
	assert.Empty(t, ch)
}
