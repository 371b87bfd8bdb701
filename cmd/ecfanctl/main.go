package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/ecfanctl/internal/config"
	"codeberg.org/mutker/ecfanctl/internal/control"
	"codeberg.org/mutker/ecfanctl/internal/ec"
	"codeberg.org/mutker/ecfanctl/internal/errors"
	"codeberg.org/mutker/ecfanctl/internal/fan"
	"codeberg.org/mutker/ecfanctl/internal/logger"
	"codeberg.org/mutker/ecfanctl/internal/metrics"
	"codeberg.org/mutker/ecfanctl/internal/pid"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := run(ctx, cfg); err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.ErrorWithCode(appErr).Msg("ecfanctl failed")
		} else {
			logger.Error().Err(err).Msg("ecfanctl failed")
		}
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	pidPath := cfg.PIDFile
	if pidPath == "" {
		pidPath = pid.DefaultPath()
	}
	if err := pid.Write(pidPath); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(pidPath); err != nil {
			logger.Warn().Err(err).Msg("failed to remove PID file")
		}
	}()

	if cfg.EnableWrite && !cfg.Mock {
		if err := ec.EnableWriteSupport(ctx, nil); err != nil {
			return err
		}
		logger.Info().Msg("EC write support enabled")
	}

	regs, err := openRegisters(cfg)
	if err != nil {
		return err
	}

	registry, err := fan.NewRegistry(cfg.Fans, regs, cfg.MaxTemp)
	if err != nil {
		return err
	}
	if err := registry.SetHistoryCapacity(cfg.HistoryLength); err != nil {
		return err
	}

	collector, exporter, err := initMetrics(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close metrics")
		}
	}()

	ctl := control.New(registry, regs,
		control.WithCollector(collector),
		control.WithLogger(logger.Default()),
	)

	if cfg.HasCommand() {
		cmd, err := control.FromConfig(cfg)
		if err != nil {
			return err
		}
		if err := ctl.Apply(cfg.Fan, cmd); err != nil {
			return err
		}
	}

	if !cfg.Monitor {
		return status(ctx, ctl)
	}

	if exporter != nil && cfg.Listen != "" {
		srv := serveMetrics(cfg.Listen, exporter)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("failed to stop metrics server")
			}
		}()
	}

	logger.Info().
		Int("fans", len(registry.Fans())).
		Int("interval", cfg.Interval).
		Msg("Monitor mode activated. Logging fan status...")

	if err := ctl.Run(ctx, time.Duration(cfg.Interval)*time.Second); err != nil {
		return errors.New().Wrap(errors.ErrMainLoop, err)
	}

	logger.Info().Msg("Exiting...")

	return nil
}

func openRegisters(cfg *config.Config) (ec.Registers, error) {
	if cfg.Mock {
		var opts []ec.MockOption
		if len(cfg.Fans) > 0 {
			opts = append(opts, ec.WithWave(cfg.Fans[0].Temp))
		}
		logger.Info().Msg("Using simulated EC registers")
		return ec.NewMockRegisters(ec.DefaultSize, opts...), nil
	}

	regs, err := ec.NewRegisterFile(cfg.Device)
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Str("device", regs.Path()).
		Int("size", regs.Len()).
		Msg("EC register file loaded")

	return regs, nil
}

// initMetrics returns the collector chain and, when an address is
// configured, the Prometheus exporter within it.
func initMetrics(cfg *config.Config) (metrics.Collector, *metrics.Exporter, error) {
	mcfg := metrics.DefaultConfig()
	mcfg.Enabled = cfg.Metrics
	mcfg.DBPath = cfg.MetricsDB

	store, err := metrics.NewService(mcfg, logger.Default())
	if err != nil {
		return nil, nil, errors.New().Wrap(errors.ErrInitMetrics, err)
	}

	if cfg.Listen == "" {
		return store, nil, nil
	}

	exporter := metrics.NewExporter()

	return metrics.Multi(store, exporter), exporter, nil
}

func serveMetrics(addr string, exporter *metrics.Exporter) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", exporter.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Serving Prometheus metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	return srv
}

// status samples every fan once and logs the result.
func status(ctx context.Context, ctl *control.Controller) error {
	snapshot, err := ctl.Cycle(ctx)
	if err != nil {
		return err
	}

	for i := range snapshot.Fans {
		s := &snapshot.Fans[i]
		logger.Info().
			Str("fan", s.Name).
			Int("temperature", s.Temperature).
			Float64("speed_level", s.SpeedLevel).
			Ints("speeds", s.Speeds).
			Str("mode", s.Mode).
			Msg("")
	}

	return nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
