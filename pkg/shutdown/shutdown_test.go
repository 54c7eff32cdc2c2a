package shutdown

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalCancelsContext(t *testing.T) {
	ctx, cancel := SetupSignalHandler(context.Background())
	defer cancel()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled by SIGTERM")
	}
}

func TestParentCancelReleasesWatcher(t *testing.T) {
	parent, stop := context.WithCancel(context.Background())
	ctx, cancel := SetupSignalHandler(parent)
	defer cancel()
	stop()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestAbortExits(t *testing.T) {
	code := -1
	orig := exit
	t.Cleanup(func() { exit = orig })
	exit = func(c int) { code = c }

	Abort("failed to open store", errors.New("locked"), "/tmp/db")
	assert.Equal(t, 1, code)
}
