package repos

import (
	"gorm.io/gorm"

	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pkg/dbctx"
	"github.com/lifeos/memoryd/internal/pkg/logger"
)

// HighlightRepo is the relational gateway for the `highlights` table.
// Duplicates per (user_id, video_id) are tolerated by design -- no unique
// constraint is applied.
type HighlightRepo interface {
	Create(dbc dbctx.Context, highlight *domain.Highlight) error
	ListByUser(dbc dbctx.Context, userID string, limit, offset int) ([]*domain.Highlight, error)
}

type highlightRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHighlightRepo(db *gorm.DB, baseLog *logger.Logger) HighlightRepo {
	return &highlightRepo{db: db, log: baseLog.With("repo", "HighlightRepo")}
}

func (r *highlightRepo) Create(dbc dbctx.Context, highlight *domain.Highlight) error {
	tx := r.db
	if dbc.Tx != nil {
		tx = dbc.Tx
	}
	return tx.WithContext(dbc.Ctx).Create(highlight).Error
}

func (r *highlightRepo) ListByUser(dbc dbctx.Context, userID string, limit, offset int) ([]*domain.Highlight, error) {
	tx := r.db
	if dbc.Tx != nil {
		tx = dbc.Tx
	}
	var out []*domain.Highlight
	q := tx.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
