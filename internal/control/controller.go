package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/ecfanctl/internal/ec"
	"codeberg.org/mutker/ecfanctl/internal/errors"
	"codeberg.org/mutker/ecfanctl/internal/fan"
	"codeberg.org/mutker/ecfanctl/internal/logger"
	"codeberg.org/mutker/ecfanctl/internal/metrics"
)

// Controller drives the fans of one register file.
type Controller struct {
	registry  *fan.Registry
	regs      ec.Registers
	collector metrics.Collector
	log       logger.Logger
	now       func() time.Time
	mu        sync.Mutex
}

type Option func(*Controller)

func WithCollector(c metrics.Collector) Option {
	return func(ctl *Controller) { ctl.collector = c }
}

func WithLogger(l logger.Logger) Option {
	return func(ctl *Controller) { ctl.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(ctl *Controller) { ctl.now = now }
}

func New(registry *fan.Registry, regs ec.Registers, opts ...Option) *Controller {
	ctl := &Controller{
		registry: registry,
		regs:     regs,
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(ctl)
	}

	return ctl
}

// Apply runs cmd on the target fans and commits the register file once.
// On failure nothing is committed and pending writes are discarded.
func (c *Controller) Apply(target string, cmd Command) error {
	errFactory := errors.New()

	fans, err := c.registry.Get(target)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.regs.Refresh(); err != nil {
		return errFactory.Wrap(ErrApplyCommand, err)
	}

	for _, f := range fans {
		if err := cmd.apply(f); err != nil {
			c.discard()
			return errFactory.Wrap(ErrApplyCommand, fmt.Errorf("fan %q %s: %w", f.Name(), cmd, err))
		}
	}

	if err := c.regs.Commit(); err != nil {
		c.discard()
		return errFactory.Wrap(ErrApplyCommand, err)
	}

	c.log.Info().
		Str("fan", target).
		Str("command", cmd.String()).
		Int("fans", len(fans)).
		Msg("Fan command applied")

	return nil
}

func (c *Controller) discard() {
	if err := c.regs.Refresh(); err != nil {
		c.log.Debug().Err(err).Msg("Failed to discard pending writes")
	}
}

// Cycle refreshes the register file, samples every fan and hands the
// snapshot to the collector. Collector failures are logged, not returned.
func (c *Controller) Cycle(ctx context.Context) (*metrics.Snapshot, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return nil, errFactory.Wrap(errors.ErrTimeout, err)
	}

	c.mu.Lock()
	snapshot, err := c.sample()
	c.mu.Unlock()
	if err != nil {
		return nil, errFactory.Wrap(ErrCycle, err)
	}

	if c.collector != nil {
		if err := c.collector.Record(ctx, snapshot); err != nil {
			c.log.Error().Err(err).Msg("Failed to record metrics")
		}
	}

	return snapshot, nil
}

func (c *Controller) sample() (*metrics.Snapshot, error) {
	if err := c.regs.Refresh(); err != nil {
		return nil, err
	}

	fans := c.registry.Fans()
	snapshot := &metrics.Snapshot{
		Timestamp: c.now(),
		Fans:      make([]metrics.FanSample, 0, len(fans)),
	}

	for _, f := range fans {
		temps, err := f.SampleTemperatureHistory()
		if err != nil {
			return nil, err
		}
		history, err := f.SampleSpeedHistory()
		if err != nil {
			return nil, err
		}
		level, err := f.SpeedLevel()
		if err != nil {
			return nil, err
		}
		mode, err := f.Mode()
		if err != nil {
			return nil, err
		}

		speeds := make([]int, len(history))
		for i, h := range history {
			speeds[i] = h[len(h)-1]
		}

		sample := metrics.FanSample{
			Name:        f.Name(),
			Temperature: temps[len(temps)-1],
			SpeedLevel:  level,
			Speeds:      speeds,
			Mode:        mode.String(),
		}
		snapshot.Fans = append(snapshot.Fans, sample)

		c.log.Debug().
			Str("fan", sample.Name).
			Int("temperature", sample.Temperature).
			Int("avg_temperature", average(temps)).
			Float64("speed_level", sample.SpeedLevel).
			Interface("speeds", sample.Speeds).
			Str("mode", sample.Mode).
			Int("history", len(temps)).
			Msg("")
	}

	return snapshot, nil
}

// Run calls Cycle every interval until ctx is cancelled.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New().WithData(ErrInvalidInterval, interval.String())
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snapshot, err := c.Cycle(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			c.logSnapshot(snapshot)
		}
	}
}

func (c *Controller) logSnapshot(snapshot *metrics.Snapshot) {
	for i := range snapshot.Fans {
		s := &snapshot.Fans[i]
		c.log.Info().
			Str("fan", s.Name).
			Int("temperature", s.Temperature).
			Float64("speed_level", s.SpeedLevel).
			Str("mode", s.Mode).
			Msg("")
	}
}

func average(values []int) int {
	if len(values) == 0 {
		return 0
	}

	sum := 0
	for _, v := range values {
		sum += v
	}

	return sum / len(values)
}
