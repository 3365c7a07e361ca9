package testing

import (
	"testing"
	"time"

	"github.com/dargueta/quotafs"
	"github.com/facebookgo/clock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// Fixture bundles a file system with the fake clock and log hook it was built
// with.
type Fixture struct {
	FS    *quotafs.FileSystem
	Clock *clock.Mock
	Logs  *test.Hook
}

// NewFileSystem creates a file system that logs into a hook instead of
// stderr and takes its time from a mock clock. The clock starts one hour after
// the Unix epoch so timestamps are never zero. `options` are applied after the
// logger and clock, so they can override either.
//
// The file system is closed when the test ends.
func NewFileSystem(t *testing.T, options ...quotafs.Option) Fixture {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	clk := clock.NewMock()
	clk.Add(time.Hour)

	allOptions := append(
		[]quotafs.Option{quotafs.WithLogger(logger), quotafs.WithClock(clk)},
		options...,
	)
	fs, err := quotafs.New(allOptions...)
	require.NoError(t, err, "failed to create file system")

	t.Cleanup(func() {
		require.NoError(t, fs.Close(), "failed to close file system")
	})
	return Fixture{FS: fs, Clock: clk, Logs: hook}
}
