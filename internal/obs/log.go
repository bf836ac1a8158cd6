// Package obs provides the shared structured logger used by the
// controller, bridge, and orchestrator packages and the tielinehubd
// command. The engine package does not log.
package obs

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the global logger instance.
var Log = logrus.New()

func init() {
	Log.SetOutput(os.Stderr)
	Log.SetLevel(logrus.InfoLevel)
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLevel sets the logging level by name (e.g. "debug", "info", "warn").
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Log.SetLevel(lvl)
	return nil
}

// SetOutput sets the log output destination.
func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}

// WithRouter returns a logger entry scoped to a router id.
func WithRouter(id string) *logrus.Entry {
	return Log.WithField("router", id)
}

// WithClient returns a logger entry scoped to a bridge client address.
func WithClient(addr string) *logrus.Entry {
	return Log.WithField("client", addr)
}

// WithTieLine returns a logger entry scoped to a tie-line pool and index.
func WithTieLine(pool string, index int) *logrus.Entry {
	return Log.WithFields(logrus.Fields{"pool": pool, "tieline": index})
}
