package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trinetra/internal/utils"
	"trinetra/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userTableName = "users"

var userColumns = utils.StructTagValues(types.User{})

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) userWhere(ctx context.Context, pred any) (*types.User, error) {
	query, args, err := psql().
		Select(userColumns...).
		From(userTableName).
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user query: %w", err)
	}

	var user types.User
	err = pgxscan.Get(ctx, r.pool, &user, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	return &user, nil
}

func (r *UserRepository) User(ctx context.Context, userID string) (*types.User, error) {
	return r.userWhere(ctx, sq.Eq{"id": userID})
}

func (r *UserRepository) UserByUsername(ctx context.Context, username string) (*types.User, error) {
	return r.userWhere(ctx, sq.Eq{"username": username})
}

func (r *UserRepository) UserByEmail(ctx context.Context, email string) (*types.User, error) {
	return r.userWhere(ctx, sq.Expr("lower(email) = ?", strings.ToLower(email)))
}

// UserExists reports whether any user already holds one of the given
// identifiers. Empty arguments are ignored.
func (r *UserRepository) UserExists(ctx context.Context, username, email, phone string) (bool, error) {
	var matches sq.Or
	if username != "" {
		matches = append(matches, sq.Eq{"username": username})
	}
	if email != "" {
		matches = append(matches, sq.Expr("lower(email) = ?", strings.ToLower(email)))
	}
	if phone != "" {
		matches = append(matches, sq.Eq{"phone": phone})
	}
	if len(matches) == 0 {
		return false, nil
	}

	query, args, err := psql().
		Select("count(*)").
		From(userTableName).
		Where(matches).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate user exists query: %w", err)
	}

	var count int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}

	return count > 0, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user *types.User) error {
	now := time.Now()
	if user.ID == "" {
		user.ID = utils.NanoID()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	query, args, err := psql().
		Insert(userTableName).
		SetMap(utils.StructToMap(user)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert user query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if isUniqueViolation(err) {
		return &types.ConflictError{Message: "User with this username, email, or phone already exists."}
	}

	return utils.ErrorWrapOrNil(err, "failed to insert user")
}

func (r *UserRepository) Users(ctx context.Context, createdBy string) ([]*types.User, error) {
	builder := psql().
		Select(userColumns...).
		From(userTableName).
		OrderBy("created_at desc")
	if createdBy != "" {
		builder = builder.Where(sq.Eq{"created_by": createdBy})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate users query: %w", err)
	}

	users := make([]*types.User, 0)
	err = pgxscan.Select(ctx, r.pool, &users, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}

	return users, nil
}

func (r *UserRepository) DeleteUsers(ctx context.Context, ids []string, createdBy string) (int64, error) {
	builder := psql().
		Delete(userTableName).
		Where(sq.Eq{"id": ids})
	if createdBy != "" {
		builder = builder.Where(sq.Eq{"created_by": createdBy})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate delete users query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete users: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *UserRepository) update(ctx context.Context, userID string, set map[string]any) error {
	set["updated_at"] = time.Now()

	query, args, err := psql().
		Update(userTableName).
		SetMap(set).
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update user query for user %s: %w", userID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return &types.ConflictError{Message: "Username, email, or phone is already in use."}
		}
		return fmt.Errorf("failed to update user %s: %w", userID, err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) UpdatePermissions(ctx context.Context, userID string, perms types.Permissions) error {
	return r.update(ctx, userID, map[string]any{"permissions": perms})
}

func (r *UserRepository) SetOTP(ctx context.Context, userID string, code *string, expiresAt *time.Time) error {
	return r.update(ctx, userID, map[string]any{
		"otp_code":       code,
		"otp_expires_at": expiresAt,
	})
}

// RecordLogin clears the OTP and appends to the device and login history.
func (r *UserRepository) RecordLogin(ctx context.Context, userID string, device types.DeviceEntry, entry types.LoginLog) error {
	return r.update(ctx, userID, map[string]any{
		"otp_code":       nil,
		"otp_expires_at": nil,
		"devices":        sq.Expr("COALESCE(devices, '[]'::jsonb) || ?::jsonb", string(utils.MustMarshalJSON([]types.DeviceEntry{device}))),
		"logs":           sq.Expr("COALESCE(logs, '[]'::jsonb) || ?::jsonb", string(utils.MustMarshalJSON([]types.LoginLog{entry}))),
	})
}

// UpdateProfile applies the non-nil changes and consumes the profile OTP.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, changes types.ProfileChanges) error {
	return r.update(ctx, userID, profileChangeSet(changes))
}

func profileChangeSet(changes types.ProfileChanges) map[string]any {
	set := utils.NonNilFields(changes)
	if changes.ClearPhone {
		set["phone"] = nil
	}
	set["otp_code"] = nil
	set["otp_expires_at"] = nil
	return set
}
