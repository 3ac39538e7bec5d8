package log

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(level logrus.Level, debugOverride bool, filter *regexp.Regexp) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return New(l, debugOverride, filter), &buf
}

func TestLoggerLevels(t *testing.T) {
	t.Parallel()

	l, buf := newBufferedLogger(logrus.InfoLevel, false, nil)
	l.Debugf("Driver:Visit", "hidden %d", 1)
	assert.Empty(t, buf.String())

	l.Infof("Driver:Visit", "shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
	assert.Contains(t, buf.String(), "category=\"Driver:Visit\"")
}

func TestLoggerCategoryFilter(t *testing.T) {
	t.Parallel()

	l, buf := newBufferedLogger(logrus.DebugLevel, false, regexp.MustCompile(`^Modal`))
	l.Debugf("Driver:Visit", "dropped")
	l.Debugf("ModalController:wait", "kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
}

func TestLoggerDebugOverride(t *testing.T) {
	t.Parallel()

	l, buf := newBufferedLogger(logrus.WarnLevel, true, nil)
	l.Debugf("cdp", "forced %s", "through")
	assert.Contains(t, buf.String(), "forced through")
}

func TestLoggerSetters(t *testing.T) {
	t.Parallel()

	l, buf := newBufferedLogger(logrus.InfoLevel, false, nil)
	require.NoError(t, l.SetLevel("debug"))
	assert.True(t, l.DebugMode())
	require.Error(t, l.SetLevel("loud"))

	require.NoError(t, l.SetCategoryFilter("^cdp$"))
	l.Debugf("cdp", "one")
	l.Debugf("driver", "two")
	assert.Contains(t, buf.String(), "one")
	assert.NotContains(t, buf.String(), "two")

	require.Error(t, l.SetCategoryFilter("("))
}

func TestNullLogger(t *testing.T) {
	t.Parallel()

	l := NewNullLogger()
	assert.NotPanics(t, func() { l.Errorf("any", "nothing %v", 1) })

	var nilLogger *Logger
	assert.NotPanics(t, func() { nilLogger.Debugf("any", "nothing") })
}
