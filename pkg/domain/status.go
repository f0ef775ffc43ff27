package domain

import (
	"fmt"
	"time"

	"github.com/wilhg/metadata/pkg/errmodel"
)

// Status is the reconciliation state of an entity whose external
// artifacts (tables, views, registry documents, IAM bindings) are
// maintained asynchronously.
type Status string

const (
	// StatusNotReady marks an entity that was never reconciled.
	StatusNotReady Status = "NOT_READY"
	// StatusSuccess marks an entity whose external artifacts match its definition.
	StatusSuccess Status = "SUCCESS"
	// StatusNeedsUpdate marks a converged entity whose artifacts went stale.
	StatusNeedsUpdate Status = "NEEDS_UPDATE"
)

var transitions = map[Status]Status{
	StatusNotReady:    StatusSuccess,
	StatusSuccess:     StatusNeedsUpdate,
	StatusNeedsUpdate: StatusSuccess,
}

// ParseStatus converts a persisted status value.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusNotReady, StatusSuccess, StatusNeedsUpdate:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// CanTransition reports whether s -> to is allowed.
func (s Status) CanTransition(to Status) bool {
	next, ok := transitions[s]
	return ok && next == to
}

func (s Status) String() string { return string(s) }

// Lifecycle is embedded by every reconcilable entity. Mutate it only
// through Transition, MarkSucceeded and Invalidate.
type Lifecycle struct {
	Status          Status
	StatusUpdatedAt time.Time
	// Revision counts committed definition changes. The store bumps it on
	// every save; a reconciliation pass only marks an entity SUCCESS if
	// the revision it loaded is still current.
	Revision int64
}

// NewLifecycle starts a lifecycle in NOT_READY.
func NewLifecycle(now time.Time) Lifecycle {
	return Lifecycle{Status: StatusNotReady, StatusUpdatedAt: now.UTC()}
}

// Transition moves to the given state if the transition table allows it.
func (l *Lifecycle) Transition(to Status, now time.Time) error {
	if !l.Status.CanTransition(to) {
		return errmodel.Validation("invalid_transition",
			fmt.Sprintf("status cannot change from %s to %s", l.Status, to),
			map[string]any{"from": string(l.Status), "to": string(to)})
	}
	l.Status = to
	l.StatusUpdatedAt = now.UTC()
	return nil
}

// MarkSucceeded records a successful reconciliation pass.
func (l *Lifecycle) MarkSucceeded(now time.Time) error {
	return l.Transition(StatusSuccess, now)
}

// Invalidate flips SUCCESS to NEEDS_UPDATE. Entities that were never
// reconciled, or are already pending, are left untouched; the return
// value reports whether a transition happened.
func (l *Lifecycle) Invalidate(now time.Time) bool {
	if l.Status != StatusSuccess {
		return false
	}
	l.Status = StatusNeedsUpdate
	l.StatusUpdatedAt = now.UTC()
	return true
}

// Converged reports whether external artifacts are up to date.
func (l *Lifecycle) Converged() bool { return l.Status == StatusSuccess }

// Reconcilable is implemented by every entity carrying a Lifecycle.
type Reconcilable interface {
	State() *Lifecycle
}

func (l *Lifecycle) State() *Lifecycle { return l }
