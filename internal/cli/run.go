package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielpatrickdp/projector-align/internal/driver"
	"github.com/danielpatrickdp/projector-align/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// #region run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Tick repeatedly at tick_interval until the search ends",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		maxTicks, _ := cmd.Flags().GetInt("max-ticks")
		keepGoing, _ := cmd.Flags().GetBool("keep-going")

		ctx := cmd.Context()
		e, err := open(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		reg := prometheus.NewRegistry()
		drv, err := e.newDriver(cmd.OutOrStdout(), metrics.New(reg))
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			defer cancel()
			return loop(gctx, drv, e.cfg.TickInterval, maxTicks, keepGoing, func(rep driver.Report) {
				printReport(cmd.OutOrStdout(), rep)
			})
		})
		if addr := e.cfg.Metrics.Addr; addr != "" {
			g.Go(func() error {
				return serveMetrics(gctx, addr, reg, e.log)
			})
		}
		return g.Wait()
	},
}

func init() {
	runCmd.Flags().Int("max-ticks", 0, "stop after N ticks (0 = no limit)")
	runCmd.Flags().Bool("keep-going", false, "keep ticking after a terminal outcome")
}

// loop runs ticks paced by a limiter. It stops at the first non-continue outcome unless
// keepGoing is set; a fatal tick ends the loop with its error.
func loop(ctx context.Context, drv *driver.Driver, interval time.Duration, maxTicks int, keepGoing bool, report func(driver.Report)) error {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	lim := rate.NewLimiter(limit, 1)

	for n := 0; maxTicks <= 0 || n < maxTicks; n++ {
		if err := lim.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		rep := drv.Tick(ctx, "")
		report(rep)
		switch rep.Outcome {
		case driver.OutcomeContinue:
		case driver.OutcomeFatal:
			if !keepGoing {
				return rep.Err
			}
		default:
			if !keepGoing {
				return nil
			}
		}
	}
	return nil
}

// #endregion run

// #region metrics-server
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		log.Info("metrics listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// #endregion metrics-server
