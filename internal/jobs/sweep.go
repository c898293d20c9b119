package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/services"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/storage"
)

// errStale marks a reservation that changed between listing and update.
var errStale = errors.New("reservation changed since listed")

// ReservationSweep completes checked-in reservations whose end time has passed.
type ReservationSweep struct {
	store    storage.Store
	clock    services.Clock
	events   services.EventPublisher
	interval time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewReservationSweep creates a sweep that runs every interval once started.
func NewReservationSweep(store storage.Store, clock services.Clock, events services.EventPublisher, interval time.Duration) *ReservationSweep {
	if events == nil {
		events = services.NoopPublisher{}
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ReservationSweep{
		store:    store,
		clock:    clock,
		events:   events,
		interval: interval,
	}
}

// Start launches the sweep loop in the background.
func (s *ReservationSweep) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		log.Warn().Msg("Reservation sweep already running")
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stop, s.done)
	log.Info().Dur("interval", s.interval).Msg("🧹 Reservation sweep started")
}

// Stop halts the loop and waits for an in-flight run to finish.
func (s *ReservationSweep) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	log.Info().Msg("Reservation sweep stopped")
}

func (s *ReservationSweep) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			if _, err := s.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("❌ Reservation sweep failed")
			}
			cancel()
		}
	}
}

// RunOnce completes every expired checked-in reservation. Each one is
// re-read and re-validated under the store's lock before it is updated, so
// a concurrent staff change wins. It returns how many were completed.
func (s *ReservationSweep) RunOnce(ctx context.Context) (int, error) {
	now := s.clock.Now()
	expired, err := s.store.ListReservations(ctx, storage.ReservationFilter{
		Statuses: []string{models.ReservationCheckedIn},
		EndedBy:  now,
	})
	if err != nil {
		return 0, fmt.Errorf("list expired reservations: %w", err)
	}

	completed := 0
	for _, r := range expired {
		updated, err := s.store.UpdateReservation(ctx, r.ID, func(cur *models.Reservation) error {
			if cur.Status != models.ReservationCheckedIn || cur.EndAt.After(now) {
				return errStale
			}
			cur.Status = models.ReservationCompleted
			cur.UpdatedAt = now
			return nil
		})
		switch {
		case errors.Is(err, errStale), errors.Is(err, storage.ErrNotFound):
			continue
		case err != nil:
			log.Error().Err(err).Uint("reservation_id", r.ID).Msg("❌ Failed to complete reservation")
			continue
		}

		completed++
		services.PublishEvent(ctx, s.events, services.EventReservationCompleted, updated, now)
	}

	if completed > 0 {
		log.Info().Int("completed", completed).Msg("✅ Expired reservations completed")
	}
	return completed, nil
}
