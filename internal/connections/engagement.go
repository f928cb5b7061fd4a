package connections

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/connvault/connvault/internal/models"
	"gorm.io/gorm"
)

// Rate records a user's up/down rating for a connection and keeps the
// connection-level aggregates in step. The engagement row is created lazily
// on first rating; repeating an identical rating is a no-op. The row write
// and both aggregate adjustments share one transaction so the counters never
// observably drift from the per-user rows.
func (s *Service) Rate(userID, connectionID uint64, rating string) (*models.Connection, error) {
	if rating != models.RatingUp && rating != models.RatingDown {
		return nil, ErrInvalidRating
	}

	var updated models.Connection
	mutated := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if errFind := tx.First(&updated, connectionID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load connection: %w", errFind)
		}

		var row models.ConnectionUserEngagement
		errFind := tx.Where("user_id = ? AND connection_id = ?", userID, connectionID).First(&row).Error
		switch {
		case errors.Is(errFind, gorm.ErrRecordNotFound):
			row = models.ConnectionUserEngagement{
				UserID:       userID,
				ConnectionID: connectionID,
				Rating:       &rating,
			}
			if errCreate := tx.Create(&row).Error; errCreate != nil {
				return mapUniqueViolation(errCreate)
			}
			if errBump := adjustRatingCounter(tx, connectionID, rating, +1); errBump != nil {
				return errBump
			}
			mutated = true

		case errFind != nil:
			return fmt.Errorf("load engagement: %w", errFind)

		default:
			var errTransition error
			mutated, errTransition = transitionRating(tx, &row, rating)
			if errTransition != nil {
				return errTransition
			}
		}

		return tx.First(&updated, connectionID).Error
	})
	if err != nil {
		return nil, err
	}

	if mutated {
		s.view.Invalidate()
	}
	return &updated, nil
}

// transitionRating applies the idempotent / set / flip transition to an
// existing engagement row. The rating update is guarded by the prior value
// observed in this transaction, so when two raters race on the same row only
// the one whose update actually takes effect applies the paired counter
// adjustments; the loser gets ErrConflict with the counters untouched.
func transitionRating(tx *gorm.DB, row *models.ConnectionUserEngagement, rating string) (bool, error) {
	if row.Rating != nil && *row.Rating == rating {
		// Idempotent: same rating again leaves counters untouched.
		return false, nil
	}

	guarded := tx.Model(&models.ConnectionUserEngagement{})
	if row.Rating == nil {
		guarded = guarded.Where("id = ? AND rating IS NULL", row.ID)
	} else {
		guarded = guarded.Where("id = ? AND rating = ?", row.ID, *row.Rating)
	}
	result := guarded.Update("rating", rating)
	if result.Error != nil {
		return false, fmt.Errorf("set rating: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, fmt.Errorf("%w: rating changed concurrently", ErrConflict)
	}

	if row.Rating != nil {
		// Flip: retract the old vote before counting the new one.
		if errDrop := adjustRatingCounter(tx, row.ConnectionID, *row.Rating, -1); errDrop != nil {
			return false, errDrop
		}
	}
	if errBump := adjustRatingCounter(tx, row.ConnectionID, rating, +1); errBump != nil {
		return false, errBump
	}
	return true, nil
}

// TrackUsage counts one use of a connection by a user, creating the
// engagement row on first use and incrementing the connection's global
// usage counter in the same transaction.
func (s *Service) TrackUsage(userID, connectionID uint64) (*models.ConnectionUserEngagement, error) {
	now := time.Now().UTC()

	var row models.ConnectionUserEngagement
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var conn models.Connection
		if errFind := tx.First(&conn, connectionID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load connection: %w", errFind)
		}

		errFind := tx.Where("user_id = ? AND connection_id = ?", userID, connectionID).First(&row).Error
		switch {
		case errors.Is(errFind, gorm.ErrRecordNotFound):
			row = models.ConnectionUserEngagement{
				UserID:       userID,
				ConnectionID: connectionID,
				UsageCount:   1,
				FirstUsedAt:  &now,
				LastUsedAt:   &now,
			}
			if errCreate := tx.Create(&row).Error; errCreate != nil {
				return mapUniqueViolation(errCreate)
			}

		case errFind != nil:
			return fmt.Errorf("load engagement: %w", errFind)

		default:
			updates := map[string]any{
				"usage_count":  gorm.Expr("usage_count + 1"),
				"last_used_at": now,
			}
			if row.FirstUsedAt == nil {
				updates["first_used_at"] = now
			}
			if errSave := tx.Model(&row).Updates(updates).Error; errSave != nil {
				return fmt.Errorf("update engagement: %w", errSave)
			}
			if errReload := tx.First(&row, row.ID).Error; errReload != nil {
				return fmt.Errorf("reload engagement: %w", errReload)
			}
		}

		// The aggregate moves with the row, not from client-supplied values.
		if errBump := tx.Model(&models.Connection{}).
			Where("id = ?", connectionID).
			UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error; errBump != nil {
			return fmt.Errorf("bump usage counter: %w", errBump)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.view.Invalidate()
	return &row, nil
}

// EngagementFor loads a user's engagement rows for the given connections.
func (s *Service) EngagementFor(userID uint64, connectionIDs []uint64) (map[uint64]models.ConnectionUserEngagement, error) {
	out := make(map[uint64]models.ConnectionUserEngagement, len(connectionIDs))
	if len(connectionIDs) == 0 {
		return out, nil
	}
	var rows []models.ConnectionUserEngagement
	if errFind := s.db.
		Where("user_id = ? AND connection_id IN ?", userID, connectionIDs).
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("load engagements: %w", errFind)
	}
	for _, row := range rows {
		out[row.ConnectionID] = row
	}
	return out, nil
}

// adjustRatingCounter moves one aggregate rating counter by delta using an
// in-database expression so concurrent adjustments are never lost.
func adjustRatingCounter(tx *gorm.DB, connectionID uint64, rating string, delta int) error {
	column := "rating_up"
	if rating == models.RatingDown {
		column = "rating_down"
	}
	expr := gorm.Expr(column + " + 1")
	if delta < 0 {
		expr = gorm.Expr(column + " - 1")
	}
	if errBump := tx.Model(&models.Connection{}).
		Where("id = ?", connectionID).
		UpdateColumn(column, expr).Error; errBump != nil {
		return fmt.Errorf("adjust %s: %w", column, errBump)
	}
	return nil
}

// mapUniqueViolation converts duplicate-row errors into ErrConflict so a
// raced lazy creation surfaces as a retryable conflict, not an internal
// failure.
func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: engagement row already exists", ErrConflict)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate") {
		return fmt.Errorf("%w: engagement row already exists", ErrConflict)
	}
	return fmt.Errorf("create engagement: %w", err)
}
