package transfer

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Worker sweeps overdue unclaimed transfers and refunds the senders.
type Worker struct {
	svc      *Service
	interval time.Duration
	stopCh   chan struct{}
}

func NewWorker(svc *Service, interval time.Duration) *Worker {
	if interval == 0 {
		interval = 10 * time.Minute
	}
	return &Worker{
		svc:      svc,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep
func (w *Worker) Start() {
	log.Info().Dur("interval", w.interval).Msg("Starting transfer expiry worker...")
	go w.loop()
}

// Stop gracefully stops the background sweep
func (w *Worker) Stop() {
	log.Info().Msg("Stopping transfer expiry worker...")
	close(w.stopCh)
}

func (w *Worker) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	w.sweep()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Worker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Keep sweeping until a batch comes back partial, so backlogs clear
	// in one cycle.
	const batchSize = 100
	for {
		n, err := w.svc.ExpireStale(ctx, batchSize)
		if err != nil {
			log.Error().Err(err).Msg("Failed to expire stale gift transfers")
			return
		}
		if n > 0 {
			log.Info().Int("count", n).Msg("Expired stale gift transfers")
		}
		if n < batchSize {
			return
		}
	}
}
