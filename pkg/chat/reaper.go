package chat

import (
	"fmt"
	"time"

	"teamsync-backend/pkg/database"
)

// Reaper periodically purges expired messages. Reads already filter on the
// expiry timestamp, so the reaper only reclaims storage; visibility does not
// depend on it having run.
type Reaper struct {
	db       database.DatabaseInterface
	interval time.Duration
	stop     chan struct{}
}

// NewReaper creates a retention reaper.
func NewReaper(db database.DatabaseInterface, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Reaper{
		db:       db,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start runs the purge loop until Stop is called.
func (r *Reaper) Start() {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				purged, err := r.db.PurgeExpiredMessages(time.Now())
				if err != nil {
					fmt.Printf("⚠️ Message purge failed: %v\n", err)
					continue
				}
				if purged > 0 {
					fmt.Printf("🧹 Purged %d expired messages\n", purged)
				}
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop terminates the purge loop.
func (r *Reaper) Stop() {
	close(r.stop)
}
