package retention

import (
	"log"
	"sync"
	"time"

	"github.com/codecollab/backend/internal/db"
)

type Config struct {
	Interval    time.Duration
	MaxAge      time.Duration
	KeepPerRoom int
}

func DefaultConfig() Config {
	return Config{
		Interval:    10 * time.Minute,
		MaxAge:      24 * time.Hour,
		KeepPerRoom: 200,
	}
}

// Service prunes the activity log in the background so the audit trail
// stays bounded: events older than MaxAge go first, then each room is
// trimmed to its KeepPerRoom most recent events.
type Service struct {
	database *db.Database
	config   Config
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(database *db.Database, config Config) *Service {
	return &Service{
		database: database,
		config:   config,
		stop:     make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	log.Printf("Retention service started (interval: %v, max age: %v, keep: %d/room)",
		s.config.Interval, s.config.MaxAge, s.config.KeepPerRoom)
}

func (s *Service) Stop() {
	close(s.stop)
	s.wg.Wait()
	log.Println("Retention service stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.prune()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.prune()
		}
	}
}

func (s *Service) prune() {
	deleted, err := s.database.DeleteActivityBefore(time.Now().Add(-s.config.MaxAge))
	if err != nil {
		log.Printf("Retention: failed to delete old activity: %v", err)
		return
	}

	rooms, err := s.database.RoomIDs()
	if err != nil {
		log.Printf("Retention: failed to list rooms: %v", err)
		return
	}

	for _, roomID := range rooms {
		if err := s.database.TrimRoomActivity(roomID, s.config.KeepPerRoom); err != nil {
			log.Printf("Retention: failed to trim room %s: %v", roomID, err)
		}
	}

	if deleted > 0 {
		log.Printf("Retention: pruned %d expired activity rows", deleted)
	}
}

// PruneNow runs one pruning pass immediately.
func (s *Service) PruneNow() {
	s.prune()
}
