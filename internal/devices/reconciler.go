package devices

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Reconcile collapses duplicate device records sharing an email into the record
// with the newest creation time and deletes the rest, returning how many rows
// were removed. Rows without an email (token-keyed schema version 1) are
// skipped; they carry no merge key. No transaction wraps the whole pass:
// deletions from already-processed groups survive a later failure.
func (s *Service) Reconcile(ctx context.Context) (int64, error) {
	var duplicatedEmails []string
	err := s.db.WithContext(ctx).Model(&Device{}).
		Where("email <> ''").
		Group("email").
		Having("COUNT(*) > 1").
		Pluck("email", &duplicatedEmails).Error
	if err != nil {
		s.logger.Error("duplicate grouping failed", zap.Error(err))
		return 0, fmt.Errorf("group devices by email: %w", err)
	}

	var deleted int64
	for _, email := range duplicatedEmails {
		var group []Device
		err := s.db.WithContext(ctx).
			Where("email = ?", email).
			Order("created_at DESC, id DESC").
			Find(&group).Error
		if err != nil {
			s.logger.Error("duplicate group load failed", zap.String("email", email), zap.Error(err))
			return deleted, fmt.Errorf("load devices for %s: %w", email, err)
		}
		if len(group) < 2 {
			continue
		}

		staleIDs := make([]string, 0, len(group)-1)
		for _, device := range group[1:] {
			staleIDs = append(staleIDs, device.ID)
		}
		result := s.db.WithContext(ctx).Where("id IN ?", staleIDs).Delete(&Device{})
		if result.Error != nil {
			s.logger.Error("duplicate delete failed", zap.String("email", email), zap.Error(result.Error))
			return deleted, fmt.Errorf("delete duplicates for %s: %w", email, result.Error)
		}
		deleted += result.RowsAffected
		s.logger.Info("duplicate devices removed",
			zap.String("email", email),
			zap.String("kept_id", group[0].ID),
			zap.Int64("removed", result.RowsAffected))
	}
	return deleted, nil
}
