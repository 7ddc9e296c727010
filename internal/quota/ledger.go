package quota

import (
	"context"
	"errors"

	"github.com/suPer8Hu/relaychat/internal/metrics"
	"github.com/suPer8Hu/relaychat/internal/models"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

// Ledger is the per-user remaining-message counter kept on the users row.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Remaining returns the user's current message count.
func (l *Ledger) Remaining(ctx context.Context, userID uint64) (int, error) {
	var u models.User
	err := l.db.WithContext(ctx).Select("id", "message_count").First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return u.MessageCount, nil
}

// Decrement spends one message if any remain. It is a single conditional
// update, so the counter never goes below zero under concurrent turns.
// ok is false when nothing was left to spend.
func (l *Ledger) Decrement(ctx context.Context, userID uint64) (ok bool, err error) {
	res := l.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND message_count > 0", userID).
		UpdateColumn("message_count", gorm.Expr("message_count - 1"))
	if res.Error != nil {
		metrics.QuotaDecrementsTotal.WithLabelValues("error").Inc()
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		metrics.QuotaDecrementsTotal.WithLabelValues("exhausted").Inc()
		return false, nil
	}
	metrics.QuotaDecrementsTotal.WithLabelValues("spent").Inc()
	return true, nil
}
