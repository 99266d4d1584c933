package cms

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/gagglehome/backend/models"
)

// PublishDuePosts flips scheduled posts whose publish date has arrived to
// published, returning how many rows changed. The bulk update skips model
// hooks on purpose: the derived fields were computed when the post was
// scheduled.
func PublishDuePosts(db *gorm.DB, now time.Time) (int64, error) {
	res := db.Model(&models.Post{}).
		Where("status = ? AND publish_date <= ?", models.StatusScheduled, now).
		Updates(map[string]any{"status": models.StatusPublished, "updated_at": now})
	return res.RowsAffected, res.Error
}

func (s *Server) publishDuePosts(now time.Time) (int64, error) {
	n, err := PublishDuePosts(s.db, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		scheduledPublishes.Add(float64(n))
		s.log.Info("published scheduled posts", "count", n)
	}
	return n, nil
}

func (s *Server) runScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("scheduled publisher running", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.publishDuePosts(time.Now().UTC()); err != nil {
				s.log.Error("publishing scheduled posts failed", "err", err)
			}
		}
	}
}
