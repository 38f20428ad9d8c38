package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"mongo-user-service/internal/domain/user"
	"mongo-user-service/pkg/logger"
	"mongo-user-service/pkg/security"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// UserRepoPG implements the user store gateway using PostgreSQL and GORM.
type UserRepoPG struct {
	db  *gorm.DB    // GORM database connection
	log *zap.Logger // Structured logger for database operations
	now func() time.Time
}

// NewUserRepoPG creates a new instance of UserRepoPG.
func NewUserRepoPG(db *gorm.DB, log *zap.Logger) *UserRepoPG {
	return &UserRepoPG{db: db, log: log, now: user.Now}
}

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	Username  string    `gorm:"not null;uniqueIndex:idx_users_username"`
	Email     *string   // nullable
	FirstName *string   // nullable
	LastName  *string   // nullable
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false;index:idx_users_created_at,sort:desc"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

func (m *UserSchema) toDomain() *user.User {
	return &user.User{
		ID:        m.ID,
		Username:  m.Username,
		Email:     m.Email,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// EnsureSchema migrates the users table and its indexes.
func (r *UserRepoPG) EnsureSchema(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&UserSchema{}); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *UserRepoPG) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// GetByID retrieves a user by identifier. A malformed identifier is a miss.
func (r *UserRepoPG) GetByID(ctx context.Context, id string) (*user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		logger.WithContext(ctx, r.log).Debug("malformed user id", zap.String("id", id))
		return nil, nil
	}

	u, err := r.take(r.db.WithContext(ctx).Where("id = ?", id))
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to get user from db", zap.Error(err), zap.String("id", id))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByUsername retrieves a user by exact, case-sensitive username.
func (r *UserRepoPG) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	u, err := r.take(r.db.WithContext(ctx).Where("username = ?", username))
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to get user by username from db", zap.Error(err), zap.String("username", username))
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return u, nil
}

func (r *UserRepoPG) take(q *gorm.DB) (*user.User, error) {
	var model UserSchema
	if err := q.Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.toDomain(), nil
}

// ListPaged retrieves one page of all users, newest first.
func (r *UserRepoPG) ListPaged(ctx context.Context, p user.PageRequest) (*user.PagedResult, error) {
	res, err := r.page(ctx, func(db *gorm.DB) *gorm.DB { return db }, p)
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to list users from db", zap.Error(err), zap.Int64("page", p.Page), zap.Int64("page_size", p.PageSize))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return res, nil
}

// SearchPaged retrieves one page of users whose username contains pattern,
// ignoring case. LIKE wildcards in pattern are matched literally.
func (r *UserRepoPG) SearchPaged(ctx context.Context, pattern string, p user.PageRequest) (*user.PagedResult, error) {
	res, err := r.page(ctx, usernameContains(pattern), p)
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to search users in db", zap.Error(err), zap.String("pattern", pattern), zap.Int64("page", p.Page))
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return res, nil
}

func (r *UserRepoPG) page(ctx context.Context, filter func(*gorm.DB) *gorm.DB, p user.PageRequest) (*user.PagedResult, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&UserSchema{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}

	var models []UserSchema
	err := r.db.WithContext(ctx).
		Scopes(filter).
		Order("created_at DESC").
		Order("id DESC").
		Offset(int(p.Skip())).
		Limit(int(p.PageSize)).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}

	users := make([]user.User, len(models))
	for i := range models {
		users[i] = *models[i].toDomain()
	}
	return user.NewPagedResult(users, p, total), nil
}

// Create inserts a new user. An existing user with exactly the same username
// yields user.ErrDuplicateUsername, whether found by the pre-check or
// rejected by the unique index.
func (r *UserRepoPG) Create(ctx context.Context, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, errors.New("user cannot be nil")
	}
	log := logger.WithContext(ctx, r.log)

	existing, err := r.take(r.db.WithContext(ctx).Where("username = ?", u.Username))
	if err != nil {
		log.Error("failed to check existing username", zap.Error(err), zap.String("username", u.Username))
		return nil, fmt.Errorf("failed to check existing username: %w", err)
	}
	if existing != nil {
		return nil, user.ErrDuplicateUsername
	}

	now := r.now()
	model := UserSchema{
		ID:        uuid.NewString(),
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isDuplicateKey(err) {
			log.Warn("username claimed concurrently", zap.String("username", u.Username))
			return nil, user.ErrDuplicateUsername
		}
		log.Error("failed to create user in db", zap.Error(err), zap.String("username", u.Username))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info("user created in db", zap.String("id", model.ID))
	return model.toDomain(), nil
}

// UpdateByUsername applies patch to the user with the given username and
// returns the updated user, or nil if there is no such user. updated_at is
// always refreshed. The write and the re-read share one transaction.
func (r *UserRepoPG) UpdateByUsername(ctx context.Context, username string, patch user.Patch) (*user.User, error) {
	values := map[string]interface{}{"updated_at": r.now()}
	for column, v := range patch.Fields("email", "first_name", "last_name") {
		values[column] = v
	}

	var updated *user.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&UserSchema{}).Where("username = ?", username).Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		u, err := r.take(tx.Where("username = ?", username))
		if err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to update user in db", zap.Error(err), zap.String("username", username))
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if updated == nil {
		logger.WithContext(ctx, r.log).Debug("user not found for update", zap.String("username", username))
		return nil, nil
	}
	logger.WithContext(ctx, r.log).Info("user updated in db", zap.String("id", updated.ID))
	return updated, nil
}

// Delete removes a user by identifier and reports whether one was removed.
func (r *UserRepoPG) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&UserSchema{})
	if res.Error != nil {
		logger.WithContext(ctx, r.log).Error("failed to delete user in db", zap.Error(res.Error), zap.String("id", id))
		return false, fmt.Errorf("failed to delete user: %w", res.Error)
	}

	if res.RowsAffected > 0 {
		logger.WithContext(ctx, r.log).Info("user deleted in db", zap.String("id", id))
	}
	return res.RowsAffected > 0, nil
}

func usernameContains(pattern string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("LOWER(username) LIKE LOWER(?) ESCAPE '"+security.LikeEscapeChar+"'", security.ContainsPattern(pattern))
	}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
