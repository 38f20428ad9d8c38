package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap/zaptest"

	"mongo-user-service/internal/domain/user"
)

const ns = "user_service.users"

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func newTestRepo(mt *mtest.T) *UserRepoMongo {
	repo := NewUserRepoMongo(mt.Coll, zaptest.NewLogger(mt))
	repo.now = func() time.Time { return fixedNow }
	return repo
}

func userDoc(id primitive.ObjectID, username string, createdAt time.Time, extra ...bson.E) bson.D {
	doc := bson.D{
		{Key: "_id", Value: id},
		{Key: "username", Value: username},
		{Key: "createdAt", Value: createdAt},
		{Key: "updatedAt", Value: createdAt},
	}
	return append(doc, extra...)
}

func countResponse(n int64) bson.D {
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: n}})
}

func commandError() bson.D {
	return mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad value"})
}

func strPtr(s string) *string { return &s }

func TestUserRepoMongo_GetByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			userDoc(id, "alice", fixedNow, bson.E{Key: "email", Value: "alice@example.com"})))

		u, err := repo.GetByID(context.Background(), id.Hex())

		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, id.Hex(), u.ID)
		assert.Equal(t, "alice", u.Username)
		assert.Equal(t, "alice@example.com", *u.Email)
		assert.Nil(t, u.FirstName)
		assert.True(t, fixedNow.Equal(u.CreatedAt))
	})

	mt.Run("miss is not an error", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		u, err := repo.GetByID(context.Background(), primitive.NewObjectID().Hex())

		require.NoError(t, err)
		assert.Nil(t, u)
	})

	mt.Run("malformed id is a miss", func(mt *mtest.T) {
		repo := newTestRepo(mt)

		u, err := repo.GetByID(context.Background(), "not-an-object-id")

		require.NoError(t, err)
		assert.Nil(t, u)
	})

	mt.Run("store failure", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(commandError())

		u, err := repo.GetByID(context.Background(), primitive.NewObjectID().Hex())

		assert.Error(t, err)
		assert.Nil(t, u)
	})
}

func TestUserRepoMongo_GetByUsername(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			userDoc(primitive.NewObjectID(), "bob", fixedNow)))

		u, err := repo.GetByUsername(context.Background(), "bob")

		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "bob", u.Username)

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		assert.Equal(t, "find", started.CommandName)
		filter := started.Command.Lookup("filter").Document()
		assert.Equal(t, "bob", filter.Lookup("username").StringValue())
	})

	mt.Run("miss", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		u, err := repo.GetByUsername(context.Background(), "Bob")

		require.NoError(t, err)
		assert.Nil(t, u)
	})
}

func TestUserRepoMongo_ListPaged(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns page and unfiltered count", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		newer, older := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(
			countResponse(5),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				userDoc(newer, "newer", fixedNow),
				userDoc(older, "older", fixedNow.Add(-time.Hour)),
			),
		)

		res, err := repo.ListPaged(context.Background(), user.NewPageRequest(2, 2))

		require.NoError(t, err)
		assert.Equal(t, int64(5), res.TotalCount)
		assert.Equal(t, int64(2), res.Page)
		assert.Equal(t, int64(2), res.PageSize)
		require.Len(t, res.Users, 2)
		assert.Equal(t, "newer", res.Users[0].Username)
		assert.Equal(t, "older", res.Users[1].Username)

		count := mt.GetStartedEvent()
		require.NotNil(t, count)
		assert.Equal(t, "aggregate", count.CommandName)

		find := mt.GetStartedEvent()
		require.NotNil(t, find)
		assert.Equal(t, "find", find.CommandName)
		assert.Equal(t, int64(2), find.Command.Lookup("skip").AsInt64())
		assert.Equal(t, int64(2), find.Command.Lookup("limit").AsInt64())

		sortKeys, err := find.Command.Lookup("sort").Document().Elements()
		require.NoError(t, err)
		require.Len(t, sortKeys, 2)
		assert.Equal(t, "createdAt", sortKeys[0].Key())
		assert.Equal(t, int32(-1), sortKeys[0].Value().Int32())
		assert.Equal(t, "_id", sortKeys[1].Key())
	})

	mt.Run("window past the end is empty with accurate count", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(countResponse(3), mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		res, err := repo.ListPaged(context.Background(), user.NewPageRequest(9, 10))

		require.NoError(t, err)
		assert.Empty(t, res.Users)
		assert.NotNil(t, res.Users)
		assert.Equal(t, int64(3), res.TotalCount)
	})

	mt.Run("count failure", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(commandError())

		res, err := repo.ListPaged(context.Background(), user.NewPageRequest(1, 10))

		assert.Error(t, err)
		assert.Nil(t, res)
	})
}

func TestUserRepoMongo_SearchPaged(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("filters by escaped case-insensitive regex", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(
			countResponse(1),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, userDoc(primitive.NewObjectID(), "a.c", fixedNow)),
		)

		res, err := repo.SearchPaged(context.Background(), "a.c", user.NewPageRequest(1, 10))

		require.NoError(t, err)
		assert.Equal(t, int64(1), res.TotalCount)
		require.Len(t, res.Users, 1)

		_ = mt.GetStartedEvent() // count
		find := mt.GetStartedEvent()
		require.NotNil(t, find)
		pattern, options := find.Command.Lookup("filter").Document().Lookup("username").Regex()
		assert.Equal(t, `a\.c`, pattern)
		assert.Equal(t, "i", options)
	})

	mt.Run("find failure", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(countResponse(1), commandError())

		res, err := repo.SearchPaged(context.Background(), "ali", user.NewPageRequest(1, 10))

		assert.Error(t, err)
		assert.Nil(t, res)
	})
}

func TestUserRepoMongo_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success stamps timestamps", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
			mtest.CreateSuccessResponse(),
		)

		created, err := repo.Create(context.Background(), &user.User{
			Username: "bob",
			Email:    strPtr("bob@example.com"),
		})

		require.NoError(t, err)
		require.NotNil(t, created)
		assert.True(t, primitive.IsValidObjectID(created.ID))
		assert.Equal(t, "bob", created.Username)
		assert.Equal(t, "bob@example.com", *created.Email)
		assert.Equal(t, fixedNow, created.CreatedAt)
		assert.Equal(t, created.CreatedAt, created.UpdatedAt)

		_ = mt.GetStartedEvent() // pre-check
		insert := mt.GetStartedEvent()
		require.NotNil(t, insert)
		assert.Equal(t, "insert", insert.CommandName)
	})

	mt.Run("existing username", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			userDoc(primitive.NewObjectID(), "bob", fixedNow)))

		created, err := repo.Create(context.Background(), &user.User{Username: "bob"})

		assert.ErrorIs(t, err, user.ErrDuplicateUsername)
		assert.Nil(t, created)
	})

	mt.Run("unique index violation", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{
				Index:   0,
				Code:    11000,
				Message: "E11000 duplicate key error collection: user_service.users index: username_unique",
			}),
		)

		created, err := repo.Create(context.Background(), &user.User{Username: "bob"})

		assert.ErrorIs(t, err, user.ErrDuplicateUsername)
		assert.Nil(t, created)
	})

	mt.Run("insert failure", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch), commandError())

		created, err := repo.Create(context.Background(), &user.User{Username: "bob"})

		assert.Error(t, err)
		assert.NotErrorIs(t, err, user.ErrDuplicateUsername)
		assert.Nil(t, created)
	})

	mt.Run("nil user", func(mt *mtest.T) {
		repo := newTestRepo(mt)

		_, err := repo.Create(context.Background(), nil)

		assert.Error(t, err)
	})
}

func TestUserRepoMongo_UpdateByUsername(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns post-image", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		created := fixedNow.Add(-24 * time.Hour)
		doc := bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "username", Value: "bob"},
			{Key: "email", Value: "x@y.com"},
			{Key: "firstName", Value: "Bob"},
			{Key: "lastName", Value: "Builder"},
			{Key: "createdAt", Value: created},
			{Key: "updatedAt", Value: fixedNow},
		}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: doc}))

		u, err := repo.UpdateByUsername(context.Background(), "bob", user.Patch{Email: strPtr("x@y.com"), FirstName: strPtr("")})

		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "x@y.com", *u.Email)
		assert.Equal(t, "Bob", *u.FirstName)
		assert.True(t, u.UpdatedAt.After(u.CreatedAt))

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		assert.Equal(t, "findAndModify", started.CommandName)
		assert.True(t, started.Command.Lookup("new").Boolean())
		set := started.Command.Lookup("update").Document().Lookup("$set").Document()
		assert.Equal(t, "x@y.com", set.Lookup("email").StringValue())
		_, err = set.LookupErr("firstName")
		assert.Error(t, err, "empty patch fields must not be written")
		assert.Equal(t, fixedNow, set.Lookup("updatedAt").Time().UTC())
	})

	mt.Run("unknown username is absent", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		u, err := repo.UpdateByUsername(context.Background(), "ghost", user.Patch{Email: strPtr("x@y.com")})

		require.NoError(t, err)
		assert.Nil(t, u)
	})

	mt.Run("store failure", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(commandError())

		u, err := repo.UpdateByUsername(context.Background(), "bob", user.Patch{})

		assert.Error(t, err)
		assert.Nil(t, u)
	})
}

func TestUserRepoMongo_Delete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deleted", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		deleted, err := repo.Delete(context.Background(), primitive.NewObjectID().Hex())

		require.NoError(t, err)
		assert.True(t, deleted)
	})

	mt.Run("nothing deleted", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		deleted, err := repo.Delete(context.Background(), primitive.NewObjectID().Hex())

		require.NoError(t, err)
		assert.False(t, deleted)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		repo := newTestRepo(mt)

		deleted, err := repo.Delete(context.Background(), "42")

		require.NoError(t, err)
		assert.False(t, deleted)
	})

	mt.Run("store failure", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(commandError())

		deleted, err := repo.Delete(context.Background(), primitive.NewObjectID().Hex())

		assert.Error(t, err)
		assert.False(t, deleted)
	})
}

func TestUserRepoMongo_EnsureSchema(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates indexes", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(t, repo.EnsureSchema(context.Background()))

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		assert.Equal(t, "createIndexes", started.CommandName)

		indexes, err := started.Command.Lookup("indexes").Array().Values()
		require.NoError(t, err)
		require.Len(t, indexes, 2)
		first := indexes[0].Document()
		assert.Equal(t, usernameIndexName, first.Lookup("name").StringValue())
		assert.True(t, first.Lookup("unique").Boolean())
	})
}
