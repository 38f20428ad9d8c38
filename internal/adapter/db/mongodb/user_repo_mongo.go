package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"mongo-user-service/internal/domain/user"
	"mongo-user-service/pkg/logger"
	"mongo-user-service/pkg/security"
)

// Document field names
const (
	fieldID        = "_id"
	fieldUsername  = "username"
	fieldEmail     = "email"
	fieldFirstName = "firstName"
	fieldLastName  = "lastName"
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
)

// Index names created by EnsureSchema
const (
	usernameIndexName  = "username_unique"
	createdAtIndexName = "createdAt_desc"
)

// UserRepoMongo implements the user store gateway on a MongoDB collection.
type UserRepoMongo struct {
	coll *mongo.Collection // users collection, shared by all requests
	log  *zap.Logger       // Structured logger for database operations
	now  func() time.Time
}

// NewUserRepoMongo creates a new instance of UserRepoMongo.
func NewUserRepoMongo(coll *mongo.Collection, log *zap.Logger) *UserRepoMongo {
	return &UserRepoMongo{coll: coll, log: log, now: user.Now}
}

// UserDocument represents the stored shape of a user.
type UserDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Username  string             `bson:"username"`
	Email     *string            `bson:"email"`
	FirstName *string            `bson:"firstName"`
	LastName  *string            `bson:"lastName"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *UserDocument) toDomain() *user.User {
	return &user.User{
		ID:        d.ID.Hex(),
		Username:  d.Username,
		Email:     d.Email,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// EnsureSchema creates the unique username index and the createdAt index
// used for paging. It is idempotent.
func (r *UserRepoMongo) EnsureSchema(ctx context.Context) error {
	names, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: fieldUsername, Value: 1}},
			Options: options.Index().SetName(usernameIndexName).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: fieldCreatedAt, Value: -1}, {Key: fieldID, Value: -1}},
			Options: options.Index().SetName(createdAtIndexName),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	r.log.Info("user indexes ensured", zap.Strings("indexes", names))
	return nil
}

// Ping checks that the primary is reachable.
func (r *UserRepoMongo) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, readpref.Primary())
}

// GetByID retrieves a user by identifier. A malformed identifier is a miss.
func (r *UserRepoMongo) GetByID(ctx context.Context, id string) (*user.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		logger.WithContext(ctx, r.log).Debug("malformed user id", zap.String("id", id))
		return nil, nil
	}

	u, err := r.findOne(ctx, bson.D{{Key: fieldID, Value: oid}})
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to get user by id from db", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByUsername retrieves a user by exact, case-sensitive username.
func (r *UserRepoMongo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	u, err := r.findOne(ctx, usernameFilter(username))
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to get user by username from db", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return u, nil
}

func (r *UserRepoMongo) findOne(ctx context.Context, filter bson.D) (*user.User, error) {
	var doc UserDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

// ListPaged retrieves one page of all users, newest first.
func (r *UserRepoMongo) ListPaged(ctx context.Context, p user.PageRequest) (*user.PagedResult, error) {
	res, err := r.page(ctx, bson.D{}, p)
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to list users from db", zap.Int64("page", p.Page), zap.Int64("page_size", p.PageSize), zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return res, nil
}

// SearchPaged retrieves one page of users whose username contains pattern,
// ignoring case. The pattern is matched literally.
func (r *UserRepoMongo) SearchPaged(ctx context.Context, pattern string, p user.PageRequest) (*user.PagedResult, error) {
	res, err := r.page(ctx, searchFilter(pattern), p)
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to search users in db", zap.String("pattern", pattern), zap.Int64("page", p.Page), zap.Error(err))
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return res, nil
}

func (r *UserRepoMongo) page(ctx context.Context, filter bson.D, p user.PageRequest) (*user.PagedResult, error) {
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}

	cursor, err := r.coll.Find(ctx, filter, pageOptions(p))
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []UserDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	users := make([]user.User, len(docs))
	for i := range docs {
		users[i] = *docs[i].toDomain()
	}
	return user.NewPagedResult(users, p, total), nil
}

// Create inserts a new user. An existing user with exactly the same username
// yields user.ErrDuplicateUsername, whether found by the pre-check or
// rejected by the unique index.
func (r *UserRepoMongo) Create(ctx context.Context, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, errors.New("user cannot be nil")
	}
	log := logger.WithContext(ctx, r.log)

	existing, err := r.findOne(ctx, usernameFilter(u.Username))
	if err != nil {
		log.Error("failed to check existing username", zap.String("username", u.Username), zap.Error(err))
		return nil, fmt.Errorf("failed to check existing username: %w", err)
	}
	if existing != nil {
		return nil, user.ErrDuplicateUsername
	}

	now := r.now()
	doc := UserDocument{
		ID:        primitive.NewObjectID(),
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.Warn("username claimed concurrently", zap.String("username", u.Username))
			return nil, user.ErrDuplicateUsername
		}
		log.Error("failed to create user in db", zap.String("username", u.Username), zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info("user created in db", zap.String("id", doc.ID.Hex()))
	return doc.toDomain(), nil
}

// UpdateByUsername applies patch to the user with the given username and
// returns the updated user, or nil if there is no such user. updatedAt is
// always refreshed. The update and the read are one atomic command.
func (r *UserRepoMongo) UpdateByUsername(ctx context.Context, username string, patch user.Patch) (*user.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc UserDocument
	err := r.coll.FindOneAndUpdate(ctx, usernameFilter(username), updateDocument(patch, r.now()), opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			logger.WithContext(ctx, r.log).Debug("user not found for update", zap.String("username", username))
			return nil, nil
		}
		logger.WithContext(ctx, r.log).Error("failed to update user in db", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	logger.WithContext(ctx, r.log).Info("user updated in db", zap.String("id", doc.ID.Hex()))
	return doc.toDomain(), nil
}

// Delete removes a user by identifier and reports whether one was removed.
func (r *UserRepoMongo) Delete(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: fieldID, Value: oid}})
	if err != nil {
		logger.WithContext(ctx, r.log).Error("failed to delete user in db", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete user: %w", err)
	}

	if res.DeletedCount > 0 {
		logger.WithContext(ctx, r.log).Info("user deleted in db", zap.String("id", id))
	}
	return res.DeletedCount > 0, nil
}

func usernameFilter(username string) bson.D {
	return bson.D{{Key: fieldUsername, Value: username}}
}

func searchFilter(pattern string) bson.D {
	return bson.D{{Key: fieldUsername, Value: primitive.Regex{
		Pattern: security.EscapeRegex(pattern),
		Options: "i",
	}}}
}

// pageOptions sorts newest first, breaking createdAt ties by _id so pages
// never overlap.
func pageOptions(p user.PageRequest) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: fieldCreatedAt, Value: -1}, {Key: fieldID, Value: -1}}).
		SetSkip(p.Skip()).
		SetLimit(p.PageSize)
}

func updateDocument(patch user.Patch, now time.Time) bson.D {
	set := bson.D{{Key: fieldUpdatedAt, Value: now}}
	// Fixed order keeps the command deterministic
	fields := patch.Fields(fieldEmail, fieldFirstName, fieldLastName)
	for _, key := range []string{fieldEmail, fieldFirstName, fieldLastName} {
		if v, ok := fields[key]; ok {
			set = append(set, bson.E{Key: key, Value: v})
		}
	}
	return bson.D{{Key: "$set", Value: set}}
}
