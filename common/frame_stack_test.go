package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/xk6-acceptance/log"
	"github.com/grafana/xk6-acceptance/testutils/nativefake"
)

func TestFrameStackEnterExit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sess := nativefake.New()
	fs := NewFrameStack(sess, log.NewNullLogger())

	frameA := nativefake.NewElement("frameA", "")
	frameB := nativefake.NewElement("frameB", "")

	require.NoError(t, fs.Enter(ctx, frameA))
	afterA := sess.ActiveContext()

	require.NoError(t, fs.Enter(ctx, frameB))
	assert.Equal(t, []string{"frameA", "frameB"}, sess.ActiveContext())

	require.NoError(t, fs.ExitToParent(ctx))
	assert.Equal(t, afterA, sess.ActiveContext())
	assert.Equal(t, 1, fs.Depth())
	assert.Equal(t, 1, sess.DefaultContentSwitches())
}

func TestFrameStackExitIsInverseOfEnter(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 5; n++ {
		n := n
		t.Run(fmt.Sprintf("depth_%d", n), func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			sess := nativefake.New()
			fs := NewFrameStack(sess, log.NewNullLogger())

			var before []string
			for i := 0; i < n; i++ {
				if i == n-1 {
					before = sess.ActiveContext()
				}
				require.NoError(t, fs.Enter(ctx, nativefake.NewElement(fmt.Sprintf("f%d", i), "")))
			}
			require.NoError(t, fs.ExitToParent(ctx))

			assert.Equal(t, before, sess.ActiveContext())
			assert.Equal(t, n-1, fs.Depth())
		})
	}
}

func TestFrameStackExitEmpty(t *testing.T) {
	t.Parallel()

	sess := nativefake.New()
	fs := NewFrameStack(sess, log.NewNullLogger())

	err := fs.ExitToParent(context.Background())
	require.ErrorIs(t, err, ErrNoParentFrame)
	assert.Zero(t, sess.DefaultContentSwitches())
}

func TestFrameStackFailedSwitchIsNotPushed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sess := nativefake.New()
	fs := NewFrameStack(sess, log.NewNullLogger())

	boom := errors.New("no such frame")
	sess.FailFrameSwitches(boom)

	err := fs.Enter(ctx, nativefake.NewElement("gone", ""))
	require.ErrorIs(t, err, boom)
	assert.Zero(t, fs.Depth())
	assert.Empty(t, sess.ActiveContext())
}

func TestFrameStackClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sess := nativefake.New()
	fs := NewFrameStack(sess, log.NewNullLogger())

	require.NoError(t, fs.Enter(ctx, nativefake.NewElement("a", "")))
	require.Len(t, fs.Handles(), 1)

	fs.Clear()
	assert.Zero(t, fs.Depth())
	require.ErrorIs(t, fs.ExitToParent(ctx), ErrNoParentFrame)
}
