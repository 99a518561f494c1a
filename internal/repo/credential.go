package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
)

// ListCredentials returns every stored credential, active or not, oldest
// first.
func ListCredentials(ctx context.Context, db *gorm.DB) ([]domain.Credential, error) {
	var out []domain.Credential
	err := db.WithContext(ctx).Order("created_at asc, id asc").Find(&out).Error
	return out, err
}

// CreateCredential inserts c, generating an ID when empty. A secret that is
// already stored yields ErrDuplicate.
func CreateCredential(ctx context.Context, db *gorm.DB, c *domain.Credential) error {
	if strings.TrimSpace(c.ID) == "" {
		c.ID = uuid.NewString()
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// SaveCredential persists the mutable quota and status fields of c.
func SaveCredential(ctx context.Context, db *gorm.DB, c *domain.Credential) error {
	res := db.WithContext(ctx).
		Model(&domain.Credential{}).
		Where("id = ?", c.ID).
		Updates(map[string]any{
			"is_active":          c.IsActive,
			"remaining_requests": c.RemainingRequests,
			"remaining_tokens":   c.RemainingTokens,
			"reset_requests_at":  c.ResetRequestsAt,
			"reset_tokens_at":    c.ResetTokensAt,
			"total_tokens_used":  c.TotalTokensUsed,
			"total_requests":     c.TotalRequests,
			"last_used_at":       c.LastUsedAt,
			"last_status":        c.LastStatus,
			"last_error":         c.LastError,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCredentialsActive flips is_active for the given ids.
func SetCredentialsActive(ctx context.Context, db *gorm.DB, ids []string, active bool) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.Credential{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"is_active": active, "updated_at": time.Now().UTC()}).Error
}
