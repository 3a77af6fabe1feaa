// Package logging builds the logrus logger and turns log events published on
// the bus into log entries.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/larder/internal/config"
	"github.com/mesh-intelligence/larder/internal/events"
	"github.com/mesh-intelligence/larder/internal/paths"
)

// HandlerName identifies the log subscriber on the bus.
const HandlerName = "logging"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger configured from cfg. Console mode writes to console;
// file mode appends to <directory>/larder.log. The returned Closer releases
// the log file.
func New(cfg config.Log, console io.Writer) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Mode != "file" {
		logger.SetOutput(console)
		return logger, nopCloser{}, nil
	}

	dir := cfg.Directory
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, paths.LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(f)
	return logger, f, nil
}

// Subscribe registers the log subscriber for the log and LOG_* events.
func Subscribe(bus *events.Bus, logger logrus.FieldLogger) {
	for _, name := range []string{events.Log, events.LogDebug, events.LogInfo, events.LogError} {
		bus.Subscribe(name, HandlerName, func(evt events.Event) error {
			return write(logger, evt)
		})
	}
}

func write(logger logrus.FieldLogger, evt events.Event) error {
	p, err := payloadOf(evt.Payload)
	if err != nil {
		return err
	}
	if strings.HasPrefix(evt.Name, "LOG_") {
		p.Level = strings.TrimPrefix(evt.Name, "LOG_")
	}
	level, err := logrus.ParseLevel(strings.ToLower(p.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	entry := logger.WithField("event", evt.Name)
	if len(p.Meta) > 0 {
		entry = entry.WithField("meta", p.Meta)
	}
	entry.Log(level, p.Message)
	return nil
}

// payloadOf accepts a LogPayload, a pointer to one, a map with level,
// message and meta keys, or a bare message.
func payloadOf(v any) (events.LogPayload, error) {
	switch p := v.(type) {
	case events.LogPayload:
		return p, nil
	case *events.LogPayload:
		if p == nil {
			return events.LogPayload{}, nil
		}
		return *p, nil
	case string:
		return events.LogPayload{Message: p}, nil
	case map[string]any:
		var out events.LogPayload
		if err := mapstructure.WeakDecode(p, &out); err != nil {
			return events.LogPayload{}, fmt.Errorf("decode log payload: %w", err)
		}
		return out, nil
	case nil:
		return events.LogPayload{}, nil
	default:
		return events.LogPayload{Message: fmt.Sprint(p)}, nil
	}
}
