package workers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"resqlink/models"
)

// EmergencySweeper closes emergencies that have gone quiet.
type EmergencySweeper interface {
	CancelStale(ctx context.Context, cutoff time.Time) ([]primitive.ObjectID, error)
}

// NotificationSweeper drops notification records past their expiry.
type NotificationSweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Broadcaster pushes events to live websocket sessions.
type Broadcaster interface {
	EmitToRoom(emergencyID, event string, data interface{})
}

type CleanupWorkerConfig struct {
	Interval          time.Duration
	StaleEmergencyAge time.Duration
}

// CleanupWorker periodically cancels emergencies that have gone quiet
// and drops expired notification records. It is the only writer that
// closes an emergency without its reporter.
type CleanupWorker struct {
	emergencies   EmergencySweeper
	notifications NotificationSweeper
	broadcaster   Broadcaster
	config        CleanupWorkerConfig

	ctx    context.Context
	cancel context.CancelFunc
}

func NewCleanupWorker(
	emergencies EmergencySweeper,
	notifications NotificationSweeper,
	broadcaster Broadcaster,
	config CleanupWorkerConfig,
) *CleanupWorker {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.StaleEmergencyAge <= 0 {
		config.StaleEmergencyAge = 24 * time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CleanupWorker{
		emergencies:   emergencies,
		notifications: notifications,
		broadcaster:   broadcaster,
		config:        config,
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (cw *CleanupWorker) Start() {
	logrus.WithField("interval", cw.config.Interval.String()).Info("Cleanup worker started")
	go cw.run()
}

func (cw *CleanupWorker) Stop() {
	cw.cancel()
}

func (cw *CleanupWorker) run() {
	ticker := time.NewTicker(cw.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cw.sweep()
		case <-cw.ctx.Done():
			logrus.Info("Cleanup worker stopped")
			return
		}
	}
}

func (cw *CleanupWorker) sweep() {
	ctx, cancel := context.WithTimeout(cw.ctx, time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-cw.config.StaleEmergencyAge)
	cancelled, err := cw.emergencies.CancelStale(ctx, cutoff)
	if err != nil {
		logrus.WithError(err).Warn("Stale emergency sweep failed")
	} else if len(cancelled) > 0 {
		// Anyone still in the room learns the emergency was closed.
		for _, id := range cancelled {
			cw.broadcaster.EmitToRoom(id.Hex(), models.WSEventEmergencyStatusUpdated, models.WSStatusUpdatedPayload{
				EmergencyID: id.Hex(),
				Status:      models.EmergencyStatusCancelled,
				UpdatedBy:   "system",
			})
		}
		logrus.WithField("cancelled", len(cancelled)).Info("Cancelled stale emergencies")
	}

	deleted, err := cw.notifications.DeleteExpired(ctx, time.Now())
	if err != nil {
		logrus.WithError(err).Warn("Expired notification sweep failed")
	} else if deleted > 0 {
		logrus.WithField("deleted", deleted).Info("Deleted expired notifications")
	}
}
