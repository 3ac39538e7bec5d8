package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/xk6-acceptance/api"
	"github.com/grafana/xk6-acceptance/log"
	"github.com/grafana/xk6-acceptance/testutils/nativefake"
)

const testPage = "http://app.test/form"

func newTestResetRecovery(obs DriverObserver) *ResetRecovery {
	opts := NewDriverOptions()
	opts.ResetDialogPause = time.Millisecond
	opts.ResetMaxAttempts = 5
	return NewResetRecovery(opts, obs, log.NewNullLogger())
}

func loadedSession(t *testing.T) *nativefake.Session {
	t.Helper()

	sess := nativefake.New()
	require.NoError(t, sess.Navigate(context.Background(), testPage))
	return sess
}

func blankNavigations(sess *nativefake.Session) int {
	n := 0
	for _, u := range sess.Navigations() {
		if u == DefaultBlankURL {
			n++
		}
	}
	return n
}

func TestResetClean(t *testing.T) {
	t.Parallel()

	sess := loadedSession(t)
	require.NoError(t, newTestResetRecovery(nil).Reset(context.Background(), sess))

	assert.Equal(t, DefaultBlankURL, sess.URL())
	assert.Equal(t, 1, blankNavigations(sess))
	assert.Zero(t, sess.DialogPolls())
}

func TestResetDrainsDialogs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dialogs []nativefake.DialogSpec
	}{
		{
			name:    "single_unload",
			dialogs: []nativefake.DialogSpec{{Kind: api.ModalBeforeUnload, Message: "Leave site?"}},
		},
		{
			name: "chained_unloads",
			dialogs: []nativefake.DialogSpec{
				{Kind: api.ModalBeforeUnload, Message: "Leave site?"},
				{Kind: api.ModalAlert, Message: "bye"},
				{Kind: api.ModalAlert, Message: "really bye"},
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sess := loadedSession(t)
			sess.SetBeforeUnload(tt.dialogs...)
			obs := &recordingObserver{}

			require.NoError(t, newTestResetRecovery(obs).Reset(context.Background(), sess))

			assert.Equal(t, DefaultBlankURL, sess.URL())
			assert.Equal(t, 1, blankNavigations(sess), "navigated more than once")
			assert.Zero(t, sess.OpenDialogs())
			assert.Equal(t, len(tt.dialogs), obs.cleared)
		})
	}
}

func TestResetWithDialogAlreadyOpen(t *testing.T) {
	t.Parallel()

	sess := loadedSession(t)
	leftover := sess.ShowDialog(api.ModalAlert, "left over")

	require.NoError(t, newTestResetRecovery(nil).Reset(context.Background(), sess))

	assert.True(t, leftover.Accepted())
	assert.Equal(t, DefaultBlankURL, sess.URL())
	assert.Equal(t, 1, blankNavigations(sess))
}

func TestResetDialogAlreadyGone(t *testing.T) {
	t.Parallel()

	sess := loadedSession(t)
	sess.FailNextNavigation(ErrUnexpectedDialog)

	require.NoError(t, newTestResetRecovery(nil).Reset(context.Background(), sess))
	assert.Equal(t, 1, blankNavigations(sess))
	assert.Equal(t, 1, sess.DialogPolls())
}

func TestResetGivesUpOnEndlessDialogs(t *testing.T) {
	t.Parallel()

	sess := loadedSession(t)
	sess.SetBeforeUnload(nativefake.DialogSpec{Kind: api.ModalBeforeUnload, Message: "again"})
	sess.SetRegenerate(true)

	err := newTestResetRecovery(nil).Reset(context.Background(), sess)
	require.ErrorIs(t, err, ErrResetExhausted)
	assert.Equal(t, 1, blankNavigations(sess))
}

func TestResetPropagatesOtherErrors(t *testing.T) {
	t.Parallel()

	sess := loadedSession(t)
	boom := errors.New("browser crashed")
	sess.FailNextNavigation(boom)

	err := newTestResetRecovery(nil).Reset(context.Background(), sess)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, sess.DialogPolls())
}
