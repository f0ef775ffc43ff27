package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/wilhg/metadata/pkg/adapters/principal"
	iamprincipal "github.com/wilhg/metadata/pkg/adapters/principal/iam"
	memprincipal "github.com/wilhg/metadata/pkg/adapters/principal/memory"
	"github.com/wilhg/metadata/pkg/adapters/registry"
	"github.com/wilhg/metadata/pkg/adapters/registry/gcs"
	memregistry "github.com/wilhg/metadata/pkg/adapters/registry/memory"
	"github.com/wilhg/metadata/pkg/adapters/warehouse"
	"github.com/wilhg/metadata/pkg/adapters/warehouse/bigquery"
	memwarehouse "github.com/wilhg/metadata/pkg/adapters/warehouse/memory"
	"github.com/wilhg/metadata/pkg/api"
	"github.com/wilhg/metadata/pkg/config"
	"github.com/wilhg/metadata/pkg/maintainer"
	mdotel "github.com/wilhg/metadata/pkg/otel"
	"github.com/wilhg/metadata/pkg/runtime"
	"github.com/wilhg/metadata/pkg/service"
	"github.com/wilhg/metadata/pkg/store/entstore"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

// dryRunProject stands in for the warehouse project when none is configured.
const dryRunProject = "dry-run"

func main() {
	fs := pflag.NewFlagSet("metadata", pflag.ContinueOnError)
	flags := config.RegisterFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if flags.Version {
		fmt.Printf("metadata %s (commit=%s, date=%s)\n", version, commit, date)
		return
	}
	cfg, err := config.Load(flags, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Error("metadata exited")
		os.Exit(1)
	}
}

// run owns every lifecycle: telemetry, store, collaborators, the HTTP
// server and the maintainer driver. It returns when ctx is cancelled or
// either loop fails.
func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	shutdown, err := mdotel.Init(ctx, mdotel.Config{ServiceVersion: version, UseStdout: cfg.Telemetry.Stdout})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.WithError(err).Warn("otel shutdown")
		}
	}()

	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	server := &http.Server{Addr: cfg.Addr, Handler: a.handler, ReadHeaderTimeout: 10 * time.Second}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		return server.Shutdown(sctx)
	})
	g.Go(func() error {
		if err := a.driver.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return g.Wait()
}

type application struct {
	store   *entstore.Store
	handler http.Handler
	driver  *runtime.Driver
	closers []func() error
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// build opens and migrates the store and wires services, the API and the
// maintainers. Dry runs use in-memory collaborators so no cloud
// credentials are needed.
func build(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*application, error) {
	st, err := entstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &application{store: st, closers: []func() error{st.Close}}
	if err := st.Migrate(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	tables, reg, principals, err := collaborators(ctx, cfg, log, a)
	if err != nil {
		a.close()
		return nil, err
	}
	deps := &maintainer.Deps{
		Store:      st,
		Warehouse:  tables,
		Registry:   reg,
		Principals: principals,
		Region:     cfg.Warehouse.Region,
		DryRun:     cfg.DryRun(),
		Log:        log,
	}
	a.driver, err = runtime.NewDriver(maintainer.All(deps),
		runtime.WithInterval(cfg.Maintainer.Interval),
		runtime.WithLogger(log),
		runtime.WithMeterProvider(otel.GetMeterProvider()),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	a.handler = api.NewServer(service.New(st, nil), log).Handler()
	log.WithFields(logrus.Fields{
		"dialect": st.Dialect(),
		"dry_run": cfg.DryRun(),
		"project": tables.Project(),
	}).Info("metadata service ready")
	return a, nil
}

func collaborators(ctx context.Context, cfg *config.Config, log *logrus.Logger, a *application) (warehouse.TableStore, registry.Registry, principal.Store, error) {
	if cfg.DryRun() {
		project := cfg.Warehouse.Project
		if project == "" {
			project = dryRunProject
		}
		return memwarehouse.New(project), memregistry.New(), memprincipal.New(), nil
	}
	bq, err := bigquery.New(ctx, cfg.Warehouse.Project, cfg.Warehouse.Region, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("bigquery: %w", err)
	}
	a.closers = append(a.closers, bq.Close)
	reg, err := gcs.New(ctx, cfg.Registry.Bucket, cfg.Registry.Prefix)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("gcs: %w", err)
	}
	a.closers = append(a.closers, reg.Close)
	principals, err := iamprincipal.New(ctx, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("iam: %w", err)
	}
	return bq, reg, principals, nil
}
