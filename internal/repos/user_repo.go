package repos

import (
	"gorm.io/gorm"

	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pkg/dbctx"
	"github.com/lifeos/memoryd/internal/pkg/logger"
)

// UserRepo is the relational gateway for the `users` table. The pipeline
// core treats users as opaque identifiers; only the HTTP auth surface reads
// or writes them.
type UserRepo interface {
	Create(dbc dbctx.Context, user *domain.User) error
	GetByID(dbc dbctx.Context, id string) (*domain.User, error)
	GetByUsername(dbc dbctx.Context, username string) (*domain.User, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) Create(dbc dbctx.Context, user *domain.User) error {
	tx := r.db
	if dbc.Tx != nil {
		tx = dbc.Tx
	}
	return tx.WithContext(dbc.Ctx).Create(user).Error
}

func (r *userRepo) GetByID(dbc dbctx.Context, id string) (*domain.User, error) {
	tx := r.db
	if dbc.Tx != nil {
		tx = dbc.Tx
	}
	var u domain.User
	if err := tx.WithContext(dbc.Ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByUsername(dbc dbctx.Context, username string) (*domain.User, error) {
	tx := r.db
	if dbc.Tx != nil {
		tx = dbc.Tx
	}
	var u domain.User
	if err := tx.WithContext(dbc.Ctx).Where("username = ?", username).First(&u).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
