// Package runtime drives the reconciliation loops on a fixed interval.
package runtime

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/metadata/pkg/maintainer"
)

// DefaultInterval separates two rounds of maintainers.
const DefaultInterval = time.Minute

// Driver runs maintainers in order, round after round. A failing
// maintainer ends its round early; the next round starts over from the
// first maintainer.
type Driver struct {
	maintainers []maintainer.Maintainer
	interval    time.Duration
	log         *logrus.Logger
	meter       metric.MeterProvider

	errors metric.Int64Counter
	rounds metric.Int64Counter
}

// DriverOption configures the Driver at construction time.
type DriverOption func(*Driver)

// WithInterval sets the pause between rounds. Non-positive values are ignored.
func WithInterval(d time.Duration) DriverOption {
	return func(dr *Driver) {
		if d > 0 {
			dr.interval = d
		}
	}
}

func WithLogger(l *logrus.Logger) DriverOption {
	return func(dr *Driver) {
		if l != nil {
			dr.log = l
		}
	}
}

// WithMeterProvider records driver metrics on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) DriverOption {
	return func(dr *Driver) {
		if mp != nil {
			dr.meter = mp
		}
	}
}

// NewDriver constructs a Driver running ms in the given order.
func NewDriver(ms []maintainer.Maintainer, opts ...DriverOption) (*Driver, error) {
	d := &Driver{maintainers: ms, interval: DefaultInterval}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logrus.New()
		d.log.SetOutput(io.Discard)
	}
	if d.meter == nil {
		d.meter = otel.GetMeterProvider()
	}
	m := d.meter.Meter("runtime/driver")
	var err error
	if d.errors, err = m.Int64Counter("maintainer_errors",
		metric.WithDescription("Maintainer passes that ended with an error"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("maintainer_errors counter: %w", err)
	}
	if d.rounds, err = m.Int64Counter("maintainer_rounds",
		metric.WithDescription("Completed maintainer rounds"),
		metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("maintainer_rounds counter: %w", err)
	}
	return d, nil
}

// RunOnce runs every maintainer once. The first error or panic is
// counted, logged and returned; the maintainers after it are skipped.
func (d *Driver) RunOnce(ctx context.Context) error {
	ctx, span := otel.Tracer("runtime/driver").Start(ctx, "Driver.RunOnce",
		trace.WithAttributes(attribute.Int("maintainers", len(d.maintainers))))
	defer span.End()

	start := time.Now()
	for _, m := range d.maintainers {
		if err := maintain(ctx, m); err != nil {
			span.RecordError(err)
			d.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("maintainer", m.Name())))
			d.log.WithError(err).WithField("maintainer", m.Name()).Error("maintainer failed")
			return fmt.Errorf("%s: %w", m.Name(), err)
		}
	}
	d.rounds.Add(ctx, 1)
	d.log.WithField("elapsed", time.Since(start).String()).Debug("maintainer round finished")
	return nil
}

// maintain runs one pass and reports a panic as an error.
func maintain(ctx context.Context, m maintainer.Maintainer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return m.Maintain(ctx)
}

// Run repeats RunOnce every interval until ctx is cancelled. Round errors
// never stop the loop. A round in flight is always allowed to finish.
func (d *Driver) Run(ctx context.Context) error {
	d.log.WithFields(logrus.Fields{"interval": d.interval.String(), "maintainers": len(d.maintainers)}).Info("driver started")
	for {
		_ = d.RunOnce(context.WithoutCancel(ctx))
		select {
		case <-ctx.Done():
			d.log.Info("driver stopped")
			return ctx.Err()
		case <-time.After(d.interval):
		}
	}
}
