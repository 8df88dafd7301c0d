package cmd

import (
	"log/slog"
	"path/filepath"

	"airplan/cli/internal/catalog"
	"airplan/cli/internal/config"
	"airplan/cli/internal/dsn"
	"airplan/cli/internal/keychain"
	"airplan/cli/internal/logging"
	"airplan/cli/internal/metrics"
	"airplan/cli/internal/profile"
	"airplan/cli/internal/retry"
	"airplan/cli/internal/router"
	"airplan/cli/internal/sqlexec"
	"airplan/cli/internal/xdg"
)

// session holds what one CLI invocation needs to talk to the servers.
type session struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *profile.Store
	factory *sqlexec.DriverFactory
	router  *router.Router
}

var sess *session

func openSession() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}
	if flagMetricsFile != "" {
		cfg.MetricsFile = flagMetricsFile
	}
	if flagDatabase != "" {
		cfg.Database = flagDatabase
	}
	if flagProfiles != "" {
		cfg.ProfilesFile = flagProfiles
	}
	logger := logging.Initialize(cfg.LogLevel, cfg.LogFormat)

	if err := dsn.ValidateDatabaseName(cfg.Database); err != nil {
		return err
	}

	path := cfg.ProfilesFile
	if path == "" {
		if path, err = profile.DefaultPath(); err != nil {
			return err
		}
	}

	// Without a keychain, passwords are kept inline in profiles.toml.
	var secrets profile.SecretStore
	if km, err := keychain.GetManager(); err == nil {
		secrets = km
	} else {
		logger.Debug("keychain unavailable", "error", err)
	}

	store := profile.NewStore(path, secrets)
	factory := sqlexec.NewDriverFactory(logger)
	sess = &session{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		factory: factory,
		router:  router.New(store, factory, router.WithLogger(logger)),
	}
	return nil
}

func closeSession() {
	if sess == nil {
		return
	}
	if err := sess.factory.Close(); err != nil {
		sess.logger.Debug("closing connection pools", "error", err)
	}
	if p := metricsPath(sess.cfg.MetricsFile); p != "" {
		if err := metrics.WriteTextfile(p); err != nil {
			sess.logger.Warn("could not write metrics file", "path", p, "error", err)
		}
	}
	sess = nil
}

// metricsPath places a bare file name in the state directory.
func metricsPath(name string) string {
	if name == "" || filepath.Base(name) != name {
		return name
	}
	dir, err := xdg.StateDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, name)
}

func (s *session) database() string { return s.cfg.Database }

func (s *session) retryPolicy(override int) retry.Policy {
	if override >= 0 {
		return retry.DefaultPolicy(override)
	}
	return retry.DefaultPolicy(s.cfg.WriteRetries)
}

func (s *session) catalog() *catalog.Service {
	return catalog.New(s.router, s.database(),
		catalog.WithRetry(s.retryPolicy(-1)),
		catalog.WithLogger(s.logger))
}
