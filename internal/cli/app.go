package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/internal/audit"
	"github.com/mesh-intelligence/larder/internal/backing"
	"github.com/mesh-intelligence/larder/internal/catalog"
	"github.com/mesh-intelligence/larder/internal/config"
	"github.com/mesh-intelligence/larder/internal/events"
	"github.com/mesh-intelligence/larder/internal/logging"
	"github.com/mesh-intelligence/larder/internal/metrics"
	"github.com/mesh-intelligence/larder/internal/paths"
	"github.com/mesh-intelligence/larder/internal/recompute"
	"github.com/mesh-intelligence/larder/internal/repository"
)

// app is the wired catalog for one command invocation.
type app struct {
	configDir string
	dataDir   string
	cfg       config.Config
	log       *logrus.Logger
	closers   []io.Closer
	backing   backing.Backing
	metrics   *metrics.Metrics
	journal   *audit.Journal
	rebuilder *recompute.Rebuilder
	svc       *catalog.Service
	loaded    bool
}

// openApp resolves directories, loads config.yaml, wires the subscribers
// and loads the repository document.
func openApp(cmd *cobra.Command) (*app, error) {
	a := &app{}
	var err error
	if a.configDir, err = paths.ResolveConfigDir(flags.configDir); err != nil {
		return nil, systemErr(fmt.Errorf("resolve config dir: %w", err))
	}
	if a.cfg, err = config.Load(a.configDir); err != nil {
		return nil, systemErr(err)
	}

	var configured string
	if a.cfg.Backing.Path != "" {
		configured = filepath.Dir(a.cfg.Backing.Path)
	}
	if a.dataDir, err = paths.ResolveDataDir(flags.dataDir, configured); err != nil {
		return nil, systemErr(fmt.Errorf("resolve data dir: %w", err))
	}
	docPath := a.cfg.Backing.Path
	if flags.dataDir != "" || docPath == "" {
		docPath = paths.DocumentPath(a.dataDir, a.cfg.Backing.Driver)
	}

	logCfg := a.cfg.Log
	if logCfg.Mode == "file" && logCfg.Directory == "" {
		logCfg.Directory = a.dataDir
	}
	logger, logCloser, err := logging.New(logCfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, systemErr(err)
	}
	a.log = logger
	a.closers = append(a.closers, logCloser)

	a.backing, err = backing.Open(cmd.Context(), backing.Config{
		Driver:   a.cfg.Backing.Driver,
		Path:     docPath,
		Bucket:   a.cfg.Backing.Bucket,
		Key:      a.cfg.Backing.Key,
		Region:   a.cfg.Backing.Region,
		Endpoint: a.cfg.Backing.Endpoint,
	})
	if err != nil {
		a.close()
		return nil, systemErr(fmt.Errorf("open backing: %w", err))
	}
	if c, ok := a.backing.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	lockDate, err := a.cfg.ParsedLockDate()
	if err != nil {
		a.close()
		return nil, systemErr(err)
	}

	a.metrics = metrics.New()
	bus := events.NewBus(events.WithLogger(logger), events.WithFailureHook(a.metrics.ObserveFailure))
	repo := repository.New(repository.WithBacking(a.backing), repository.WithLogger(logger))

	logging.Subscribe(bus, logger)

	auditPath := a.cfg.Audit.Path
	if auditPath == "" {
		auditPath = filepath.Join(a.dataDir, paths.AuditFile)
	}
	a.journal = audit.New(auditPath, audit.WithLogger(logger))
	a.journal.Subscribe(bus)

	a.rebuilder = recompute.New(repo,
		recompute.WithLogger(logger),
		recompute.WithMetrics(a.metrics),
		recompute.WithLockDate(lockDate),
	)
	a.rebuilder.Subscribe(bus)

	a.svc = catalog.New(repo, bus,
		catalog.WithLogger(logger),
		catalog.WithMetrics(a.metrics),
		catalog.WithLockDate(lockDate),
	)

	if a.loaded, err = a.svc.Load(); err != nil {
		a.close()
		return nil, systemErr(fmt.Errorf("load %s: %w", a.backing.Name(), err))
	}
	logger.WithFields(logrus.Fields{"backing": a.backing.Name(), "loaded": a.loaded}).Debug("repository opened")
	return a, nil
}

// save persists the repository document.
func (a *app) save() error {
	if err := a.svc.Save(); err != nil {
		return systemErr(fmt.Errorf("save %s: %w", a.backing.Name(), err))
	}
	return nil
}

// close writes the metrics textfile when configured and releases the log
// file and backing.
func (a *app) close() {
	if a.metrics != nil && a.cfg.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil && a.log != nil {
			a.log.WithError(err).Warn("write metrics textfile")
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}

// withApp opens the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, fn func(*app) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
