package workers

import (
	"chat-room/contract"
	"chat-room/domain"
	"chat-room/repositories"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// PresenceHealthService is the gRPC health service name reflecting sweep outcomes.
const PresenceHealthService = "chat.presence"

var _ contract.Worker = (*PresenceSweeper)(nil)

// PresenceSweeper evicts participants whose heartbeat is older than staleThreshold,
// every sweepInterval. The store announces each departure with a status message.
type PresenceSweeper struct {
	log            *slog.Logger
	presence       repositories.IPresenceRepository
	health         contract.HealthReporter
	sweepInterval  time.Duration
	staleThreshold time.Duration
	storeTimeout   time.Duration
	sweeping       sync.Mutex
}

type SweeperConfig struct {
	SweepInterval  time.Duration
	StaleThreshold time.Duration
	StoreTimeout   time.Duration
}

// NewPresenceSweeper builds the sweeper. health may be nil.
func NewPresenceSweeper(
	log *slog.Logger,
	presence repositories.IPresenceRepository,
	health contract.HealthReporter,
	config SweeperConfig,
) *PresenceSweeper {
	return &PresenceSweeper{
		log:            log,
		presence:       presence,
		health:         health,
		sweepInterval:  config.SweepInterval,
		staleThreshold: config.StaleThreshold,
		storeTimeout:   config.StoreTimeout,
	}
}

// Run sweeps on every tick until ctx is cancelled.
// A failed sweep is logged and retried on the next tick.
func (w *PresenceSweeper) Run(ctx context.Context) error {
	w.log.Info("Starting presence sweeper",
		"interval", w.sweepInterval, "stale_threshold", w.staleThreshold)
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
				w.log.Warn("Sweep failed, retrying next tick", "error", err)
			}
		}
	}
}

// Sweep runs one eviction pass and returns the evicted participants.
// Sweeps never overlap: a call made while another one is running returns immediately
// without touching the store.
// Evictions and their departure messages are committed together, a failed pass leaves
// every participant in place.
func (w *PresenceSweeper) Sweep(ctx context.Context) ([]domain.Participant, error) {
	if !w.sweeping.TryLock() {
		w.log.Debug("Previous sweep still running, skipping tick")
		return nil, nil
	}
	defer w.sweeping.Unlock()

	storeCtx, cancel := context.WithTimeout(ctx, w.storeTimeout)
	defer cancel()

	evicted, err := w.presence.EvictStale(storeCtx, w.staleThreshold)
	if err != nil {
		w.report(healthpb.HealthCheckResponse_NOT_SERVING)
		return nil, fmt.Errorf("eviction failed: %w", err)
	}
	for _, participant := range evicted {
		w.log.Info("Participant left", "participant", participant.Name,
			"last_heartbeat", participant.LastHeartbeat)
	}
	w.report(healthpb.HealthCheckResponse_SERVING)
	return evicted, nil
}

func (w *PresenceSweeper) report(status healthpb.HealthCheckResponse_ServingStatus) {
	if w.health != nil {
		w.health.SetServingStatus(PresenceHealthService, status)
	}
}
