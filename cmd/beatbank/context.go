package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/llehouerou/beatbank/internal/analyzer"
	"github.com/llehouerou/beatbank/internal/catalog"
	"github.com/llehouerou/beatbank/internal/config"
	"github.com/llehouerou/beatbank/internal/enrich"
	"github.com/llehouerou/beatbank/internal/errmsg"
	"github.com/llehouerou/beatbank/internal/logger"
)

type commandContext struct {
	configFlag *string
	dbFlag     *string

	configOnce sync.Once
	config     *config.Config
	log        *zap.Logger
	closeLog   func() error
	configErr  error
}

func newCommandContext(configFlag, dbFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		dbFlag:     dbFlag,
		log:        zap.NewNop(),
	}
}

// ensureConfig loads the configuration and builds the logger once.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var cfg *config.Config
		var err error
		if path := flagValue(c.configFlag); path != "" {
			cfg, err = config.LoadFrom(path)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if db := flagValue(c.dbFlag); db != "" {
			cfg.DatabasePath = db
		}

		log, closeLog, err := logger.New(cfg.GetLogConfig(), os.Stderr)
		if err != nil {
			c.configErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.config = cfg
		c.log = log
		c.closeLog = closeLog
	})
	return c.config, c.configErr
}

func (c *commandContext) close() {
	if c.closeLog != nil {
		_ = c.closeLog()
	}
}

// withStore opens the catalog for the duration of fn. Failing to open it is
// reported as an initialization error.
func (c *commandContext) withStore(fn func(*catalog.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	path, err := cfg.GetDatabasePath()
	if err != nil {
		return opError(errmsg.OpInitialize, "", err)
	}

	store, err := catalog.Open(path, catalog.WithLogger(c.log.Named("catalog")))
	if err != nil {
		return opError(errmsg.OpInitialize, path, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			c.log.Warn("close catalog", zap.Error(err))
		}
	}()

	return fn(store)
}

// coordinator returns an enrichment coordinator over store using the
// configured analyzer process.
func (c *commandContext) coordinator(store *catalog.Store) *enrich.Coordinator {
	proc := analyzer.NewProcess(c.config.GetAnalyzerConfig(),
		analyzer.WithLogger(c.log.Named("analyzer")))
	return enrich.New(store, proc, enrich.WithLogger(c.log.Named("enrich")))
}

func (c *commandContext) settingsPath() (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.GetSettingsPath()
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

// cliError carries a user-facing message while keeping the cause matchable
// with errors.Is.
type cliError struct {
	msg string
	err error
}

func (e *cliError) Error() string { return e.msg }
func (e *cliError) Unwrap() error { return e.err }

func opError(op errmsg.Op, context string, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{msg: errmsg.FormatWith(op, context, err), err: err}
}
