package repos

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pkg/dbctx"
	"github.com/lifeos/memoryd/internal/pkg/logger"
)

// VideoRepo is the relational gateway for the `videos` table. This is the
// commit point of the pipeline: a job is considered processed once Create
// succeeds.
type VideoRepo interface {
	// Create inserts a video row. video_id is the primary key; an insert
	// whose video_id already exists is skipped without an error.
	Create(dbc dbctx.Context, video *domain.Video) error
	GetByID(dbc dbctx.Context, userID, videoID string) (*domain.Video, error)
	GetByIDs(dbc dbctx.Context, videoIDs []string) ([]*domain.Video, error)
	ListByUser(dbc dbctx.Context, userID string, limit, offset int) ([]*domain.Video, error)
	Delete(dbc dbctx.Context, userID, videoID string) (bool, error)
	UpdateVectorStatus(dbc dbctx.Context, videoID string, status domain.VectorStatus, vectorID *string) error
}

type videoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoRepo(db *gorm.DB, baseLog *logger.Logger) VideoRepo {
	return &videoRepo{db: db, log: baseLog.With("repo", "VideoRepo")}
}

func (r *videoRepo) Create(dbc dbctx.Context, video *domain.Video) error {
	tx := r.db
	if dbc.Tx != nil {
		tx = dbc.Tx
	}
	// ON CONFLICT DO NOTHING on the video_id primary key makes a repeated
	// insert of the same video_id a no-op.
	return tx.WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}},
		DoNothing: true,
	}).Create(video).Error
}

func (r *videoRepo) GetByID(dbc dbctx.Context, userID, videoID string) (*domain.Video, error) {
	tx := r.db
	if dbc.Tx != nil {
		tx = dbc.Tx
	}
	var v domain.Video
	q := tx.WithContext(dbc.Ctx).Where("video_id = ?", videoID)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.First(&v).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (r *videoRepo) GetByIDs(dbc dbctx.Context, videoIDs []string) ([]*domain.Video, error) {
	tx := r.db
	if dbc.Tx != nil {
		tx = dbc.Tx
	}
	var out []*domain.Video
	if len(videoIDs) == 0 {
		return out, nil
	}
	if err := tx.WithContext(dbc.Ctx).Where("video_id IN ?", videoIDs).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *videoRepo) ListByUser(dbc dbctx.Context, userID string, limit, offset int) ([]*domain.Video, error) {
	tx := r.db
	if dbc.Tx != nil {
		tx = dbc.Tx
	}
	var out []*domain.Video
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

func (r *videoRepo) Delete(dbc dbctx.Context, userID, videoID string) (bool, error) {
	tx := r.db
	if dbc.Tx != nil {
		tx = dbc.Tx
	}
	res := tx.WithContext(dbc.Ctx).
		Where("video_id = ? AND user_id = ?", videoID, userID).
		Delete(&domain.Video{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *videoRepo) UpdateVectorStatus(dbc dbctx.Context, videoID string, status domain.VectorStatus, vectorID *string) error {
	tx := r.db
	if dbc.Tx != nil {
		tx = dbc.Tx
	}
	updates := map[string]any{
		"vector_status":     status,
		"vector_updated_at": gorm.Expr("now()"),
	}
	if vectorID != nil {
		updates["vector_id"] = *vectorID
	}
	return tx.WithContext(dbc.Ctx).
		Model(&domain.Video{}).
		Where("video_id = ?", videoID).
		Updates(updates).Error
}
