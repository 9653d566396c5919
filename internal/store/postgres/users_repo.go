package postgres

import (
	"context"
	"strings"

	"github.com/uptrace/bun"

	"booking/backend/internal/domain"
	"booking/backend/internal/store"
)

type UserRepo struct {
	db *bun.DB
}

func NewUserRepo(db *bun.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) FindByID(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := r.db.NewSelect().
		Model(&u).
		Relation("Avatar").
		Where("?TableAlias.id = ?", id).
		Scan(ctx)
	if err != nil {
		return domain.User{}, mapError(err)
	}
	return u, nil
}

func (r *UserRepo) FindProviderByID(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := r.db.NewSelect().
		Model(&u).
		Relation("Avatar").
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.provider").
		Scan(ctx)
	if err != nil {
		return domain.User{}, mapError(err)
	}
	return u, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := r.db.NewSelect().
		Model(&u).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Scan(ctx)
	if err != nil {
		return domain.User{}, mapError(err)
	}
	return u, nil
}

func (r *UserRepo) ListProviders(ctx context.Context) ([]domain.User, error) {
	var rows []domain.User
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Avatar").
		Where("?TableAlias.provider").
		OrderExpr("?TableAlias.name ASC, ?TableAlias.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	m := domain.User{
		Name:         u.Name,
		Email:        strings.ToLower(strings.TrimSpace(u.Email)),
		PasswordHash: u.PasswordHash,
		Provider:     u.Provider,
		AvatarID:     u.AvatarID,
	}
	if _, err := r.db.NewInsert().Model(&m).Returning("id").Exec(ctx); err != nil {
		return domain.User{}, mapError(err)
	}
	return m, nil
}

func (r *UserRepo) Update(ctx context.Context, u domain.User) (domain.User, error) {
	m := domain.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        strings.ToLower(strings.TrimSpace(u.Email)),
		PasswordHash: u.PasswordHash,
		Provider:     u.Provider,
		AvatarID:     u.AvatarID,
		CreatedAt:    u.CreatedAt,
	}
	res, err := r.db.NewUpdate().
		Model(&m).
		Column("name", "email", "password_hash", "provider", "avatar_id", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.User{}, mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.User{}, err
	}
	if affected == 0 {
		return domain.User{}, store.ErrNotFound
	}
	return m, nil
}
