// Package maintainer holds the reconciliation loops. Each maintainer
// converges every entity of one kind that is not SUCCESS: it applies the
// kind's warehouse, registry or IAM side effects, marks the entity
// SUCCESS and commits before moving to the next one. The first failing
// side effect aborts the pass and leaves that entity's status untouched
// so it is retried on the next interval.
//
// Maintainers only ever write statuses. An entity whose definition
// changed while its side effects were being applied keeps its pending
// status and is maintained again on the next pass.
package maintainer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/metadata/pkg/adapters/principal"
	"github.com/wilhg/metadata/pkg/adapters/registry"
	"github.com/wilhg/metadata/pkg/adapters/warehouse"
	"github.com/wilhg/metadata/pkg/compiler"
	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/errmodel"
	"github.com/wilhg/metadata/pkg/store"
)

// Maintainer is one reconciliation loop.
type Maintainer interface {
	Name() string
	Maintain(ctx context.Context) error
}

// Deps are the collaborators shared by every maintainer.
type Deps struct {
	Store      store.Store
	Warehouse  warehouse.TableStore
	Registry   registry.Registry
	Principals principal.Store
	// Region is where new datasets are created.
	Region string
	// DryRun skips every collaborator call. Store writes still happen.
	DryRun bool
	Log    *logrus.Logger
	Now    func() time.Time
}

// All returns the maintainers in the order they must run each interval.
func All(d *Deps) []Maintainer {
	return []Maintainer{
		&RawSchemas{d},
		&EventContexts{d},
		&Organizations{d},
		&Apps{d},
		&Events{d},
	}
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Deps) logger() *logrus.Logger {
	if d.Log != nil {
		return d.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (d *Deps) project() string { return d.Warehouse.Project() }

// pass opens a session, takes the maintainer lock on a best-effort basis
// and runs fn inside a span. The session is closed on return, which rolls
// back whatever fn did not commit.
func (d *Deps) pass(ctx context.Context, name string, fn func(context.Context, store.Session, *logrus.Entry) error) (err error) {
	ctx, span := otel.Tracer("maintainer").Start(ctx, "maintainer."+name, trace.WithAttributes(
		attribute.String("maintainer", name),
		attribute.Bool("dry_run", d.DryRun),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := d.logger().WithFields(logrus.Fields{"maintainer": name, "pass_id": uuid.NewString()})
	s, err := d.Store.Session(ctx)
	if err != nil {
		return fmt.Errorf("%s: open session: %w", name, err)
	}
	defer func() { _ = s.Close() }()

	held, err := s.TryMaintainerLock(ctx)
	if err != nil {
		return fmt.Errorf("%s: maintainer lock: %w", name, err)
	}
	if !held {
		log.Warn("maintainer lock is held by another worker, proceeding")
	}
	return fn(ctx, s, log)
}

// apply runs one collaborator call. In dry-run it only logs. Failures are
// wrapped as external side-effect errors carrying op as their code.
func (d *Deps) apply(ctx context.Context, log *logrus.Entry, op, target string, call func(context.Context) error) error {
	if d.DryRun {
		log.WithFields(logrus.Fields{"op": op, "target": target}).Debug("dry run, skipping")
		return nil
	}
	return external(op, target, call(ctx))
}

// external wraps a failed collaborator call; nil stays nil.
func external(op, target string, err error) error {
	if err == nil {
		return nil
	}
	return errmodel.External(op, fmt.Sprintf("%s %s failed", op, target), map[string]any{"target": target}, err)
}

// markSucceeded records that e converged at the revision it was loaded
// with. It reports false when a mutation committed in the meantime.
func markSucceeded(ctx context.Context, s store.Session, log *logrus.Entry, e domain.Reconcilable, now time.Time) (bool, error) {
	lc := e.State()
	rev := lc.Revision
	if err := lc.MarkSucceeded(now); err != nil {
		return false, err
	}
	ok, err := s.Converge(ctx, store.RefOf(e), rev, now)
	if err != nil {
		return false, err
	}
	if !ok {
		log.WithField("revision", rev).Warn("changed while being maintained, left for the next pass")
	}
	return ok, nil
}

// converge marks e SUCCESS and commits.
func converge(ctx context.Context, s store.Session, log *logrus.Entry, e domain.Reconcilable, now time.Time) error {
	if _, err := markSucceeded(ctx, s, log, e, now); err != nil {
		return err
	}
	return s.Commit(ctx)
}

func (d *Deps) ensureDataset(ctx context.Context, log *logrus.Entry, project, name string) error {
	return d.apply(ctx, log, "ensure_dataset", project+"."+name, func(ctx context.Context) error {
		return d.Warehouse.EnsureDataset(ctx, project, name, d.Region)
	})
}

// ensureTable creates spec unless a table already exists at its ref.
func (d *Deps) ensureTable(ctx context.Context, log *logrus.Entry, spec warehouse.TableSpec) error {
	return d.apply(ctx, log, "create_table", spec.Ref.String(), func(ctx context.Context) error {
		t, err := d.Warehouse.Table(ctx, spec.Ref)
		if err != nil || t != nil {
			return err
		}
		return d.Warehouse.CreateTable(ctx, spec)
	})
}

// maintainTable creates spec when absent, otherwise adds the fields the
// existing table lacks. Removed or retyped fields fail the call.
func (d *Deps) maintainTable(ctx context.Context, log *logrus.Entry, spec warehouse.TableSpec) error {
	target := spec.Ref.String()
	if d.DryRun {
		log.WithField("target", target).Debug("dry run, skipping table maintenance")
		return nil
	}
	t, err := d.Warehouse.Table(ctx, spec.Ref)
	if err != nil {
		return external("get_table", target, err)
	}
	if t == nil {
		log.WithField("target", target).Info("creating table")
		return d.apply(ctx, log, "create_table", target, func(ctx context.Context) error {
			return d.Warehouse.CreateTable(ctx, spec)
		})
	}
	additions, err := warehouse.Additions(t.Fields, spec.Fields)
	if err != nil {
		return external("alter_table", target, err)
	}
	if len(additions) == 0 {
		return nil
	}
	log.WithFields(logrus.Fields{"target": target, "additions": len(additions)}).Info("altering table")
	return d.apply(ctx, log, "alter_table", target, func(ctx context.Context) error {
		return d.Warehouse.AlterTableAddFields(ctx, spec.Ref, additions)
	})
}

// maintainEventTables keeps the load, raw and backfill tables of name in
// line with params and refreshes its two read views.
func (d *Deps) maintainEventTables(ctx context.Context, log *logrus.Entry, appID domain.AppID, name string,
	params []*domain.SchemaParameter, contexts []*domain.EventContext, atomics []*domain.AtomicParameter) error {
	project := d.project()
	fields := compiler.EventShape(params, contexts, atomics)
	for _, t := range compiler.EventTables(project, appID, name) {
		spec := warehouse.TableSpec{Ref: t.Ref, Fields: fields, Partitioning: t.Partitioning}
		if err := d.maintainTable(ctx, log, spec); err != nil {
			return err
		}
	}
	for _, v := range compiler.EventViews(project, appID, name) {
		query := compiler.ViewQuery(v.Source, params, contexts, atomics)
		if err := d.apply(ctx, log, "create_view", v.Ref.String(), func(ctx context.Context) error {
			return d.Warehouse.CreateOrReplaceView(ctx, v.Ref, query)
		}); err != nil {
			return err
		}
	}
	return nil
}

// publish uploads one registry document per historical version of g.
func (d *Deps) publish(ctx context.Context, log *logrus.Entry, g domain.SchemaGenerator) error {
	docs, err := compiler.Documents(g)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := d.apply(ctx, log, "upload", doc.Path, func(ctx context.Context) error {
			return d.Registry.Upload(ctx, doc.Path, doc.Body)
		}); err != nil {
			return err
		}
	}
	return nil
}
