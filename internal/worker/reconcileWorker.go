package worker

import (
	"context"
	"time"

	"github.com/ds124wfegd/ewm/pkg/scheduler"
	"github.com/sirupsen/logrus"
)

// CapacityReconciler repairs confirmed-request aggregates that drifted from
// the request rows.
type CapacityReconciler interface {
	ReconcileCapacity(ctx context.Context, limit int) (int, error)
}

type ReconcileWorker struct {
	reconciler CapacityReconciler
	interval   time.Duration
	batchSize  int
}

func NewReconcileWorker(reconciler CapacityReconciler, interval time.Duration, batchSize int) *ReconcileWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ReconcileWorker{
		reconciler: reconciler,
		interval:   interval,
		batchSize:  batchSize,
	}
}

// Job registers the worker with a scheduler.
func (w *ReconcileWorker) Job() scheduler.Job {
	return scheduler.Job{
		Name:     "capacity-reconcile",
		Interval: w.interval,
		Run:      func(ctx context.Context) { w.RunOnce(ctx) },
	}
}

// RunOnce performs a single reconciliation pass and returns the number of
// repaired events.
func (w *ReconcileWorker) RunOnce(ctx context.Context) int {
	repaired, err := w.reconciler.ReconcileCapacity(ctx, w.batchSize)
	if err != nil {
		logrus.WithError(err).WithField("repaired", repaired).Error("Capacity reconciliation failed")
		return repaired
	}

	if repaired > 0 {
		logrus.WithField("repaired", repaired).Warn("Capacity reconciliation repaired events")
	} else {
		logrus.Debug("Capacity aggregates are consistent")
	}
	return repaired
}
