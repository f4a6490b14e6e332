package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/danielpatrickdp/projector-align/internal/config"
	"github.com/danielpatrickdp/projector-align/internal/device"
	"github.com/danielpatrickdp/projector-align/internal/driver"
	"github.com/danielpatrickdp/projector-align/internal/logging"
	"github.com/danielpatrickdp/projector-align/internal/metrics"
	"github.com/danielpatrickdp/projector-align/internal/replay"
	"github.com/danielpatrickdp/projector-align/internal/state"
	"github.com/danielpatrickdp/projector-align/internal/status"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// #region root
var (
	cfgPath string
	simPath string
	rootCmd = &cobra.Command{
		Use:   "aligner",
		Short: "Align a tagged projector's hologram with the structure it is projected onto",
		Long: `aligner drives one alignment tick at a time against the projector whose name
carries the configured [TAG]. Search state is persisted between ticks, so the
command can be invoked repeatedly or left running.

Run a single tick:
  aligner tick

Discard the search and start over:
  aligner reset`,
		SilenceUsage: true,
	}
)

// ExecuteContext runs the root command. Cancelling ctx stops a running loop.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "aligner.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&simPath, "sim", "", "drive the simulated projector of a replay fixture instead of the device host")

	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(rollbackCmd)
}

// #endregion root

// #region env
// env holds the collaborators opened for one command invocation.
type env struct {
	cfg      config.Config
	log      *zap.Logger
	backend  state.Backend
	store    *state.Store // non-nil for the sqlite backend
	recorder logging.Recorder
	resolver device.Resolver
	closers  []io.Closer
}

func loadConfig() (config.Config, error) {
	return config.Load(cfgPath)
}

// open loads config and connects the state backend, and the device resolver when
// withDevice is set.
func open(ctx context.Context, withDevice bool) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logging.NewLogger(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	e := &env{cfg: cfg, log: log, recorder: logging.NopRecorder{}}

	if err := e.openBackend(ctx); err != nil {
		e.Close()
		return nil, err
	}
	if withDevice {
		if err := e.openResolver(); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

func (e *env) openBackend(ctx context.Context) error {
	dsn := e.cfg.Store.DSN
	switch e.cfg.Store.Backend {
	case "sqlite":
		s, err := state.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("open sqlite store %s: %w", dsn, err)
		}
		e.backend, e.store = s, s
		e.recorder = logging.NewSQLRecorder(s.DB())
		e.closers = append(e.closers, s)
	case "redis":
		s, err := state.ConnectRedis(dsn)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		e.backend = s
		e.closers = append(e.closers, s)
	case "postgres":
		s, err := state.ConnectPostgres(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		e.backend = s
		e.closers = append(e.closers, s)
	case "memory":
		e.backend = state.NewMemoryStore()
	default:
		return fmt.Errorf("unknown store backend %q", e.cfg.Store.Backend)
	}
	return nil
}

func (e *env) openResolver() error {
	if simPath != "" {
		f, err := replay.LoadFixture(simPath)
		if err != nil {
			return err
		}
		sim, err := f.Device.ToSim(e.cfg.Tag)
		if err != nil {
			return fmt.Errorf("fixture device: %w", err)
		}
		e.resolver = device.NewRegistry(sim)
		return nil
	}
	if e.cfg.Device.Addr == "" {
		return errors.New("device.addr is empty; set it or pass --sim")
	}
	c, err := device.NewRemoteClient(e.cfg.Device.Addr)
	if err != nil {
		return err
	}
	e.resolver = c
	e.closers = append(e.closers, c)
	return nil
}

// newDriver builds a tick driver reporting status lines to out. Config is re-read on every tick.
func (e *env) newDriver(out io.Writer, m *metrics.Metrics) (*driver.Driver, error) {
	return driver.New(driver.Options{
		Config:   loadConfig,
		Resolver: e.resolver,
		Backend:  e.backend,
		Recorder: e.recorder,
		Status:   status.NewSurface(out, e.log),
		Log:      e.log,
		Metrics:  m,
	})
}

// Close releases everything open opened, newest first.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			e.log.Warn("close failed", zap.Error(err))
		}
	}
	_ = e.log.Sync()
}

// #endregion env
