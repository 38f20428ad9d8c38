package cached

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"mongo-user-service/internal/adapter/cache"
	domain "mongo-user-service/internal/domain/user"
	"mongo-user-service/internal/usecase/user"
	"mongo-user-service/pkg/logger"
)

// CachedUserRepository implements user.Repository with caching support.
// It wraps a persistent repository (DB) and a cache implementation.
// Only lookups by ID are cached; every write that can change a cached
// entry invalidates it.
//
// A load that read a row before a concurrent update or delete never leaves
// that row cached within this process. Writes made through another replica
// can still leave a stale entry until it expires.
type CachedUserRepository struct {
	dbRepo user.Repository
	cache  cache.UserCache
	log    *zap.Logger
	group  singleflight.Group

	mu      sync.Mutex
	loading map[string]int  // in-flight loads per id
	stale   map[string]bool // ids invalidated while a load was in flight
}

var _ user.Repository = (*CachedUserRepository)(nil)

// NewCachedUserRepository creates a new instance of CachedUserRepository.
func NewCachedUserRepository(dbRepo user.Repository, cache cache.UserCache, log *zap.Logger) *CachedUserRepository {
	return &CachedUserRepository{
		dbRepo:  dbRepo,
		cache:   cache,
		log:     log,
		loading: make(map[string]int),
		stale:   make(map[string]bool),
	}
}

// Create delegates to the DB repository.
func (r *CachedUserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	return r.dbRepo.Create(ctx, u)
}

// GetByID retrieves a user by ID using Cache-Aside pattern.
func (r *CachedUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	log := logger.WithContext(ctx, r.log)

	if r.cache != nil {
		cachedUser, err := r.cache.Get(ctx, id)
		if err != nil {
			log.Warn("cache get error, falling back to database", zap.String("id", id), zap.Error(err))
		} else if cachedUser != nil {
			return cachedUser, nil
		}
	}

	// Single-flight so concurrent misses hit the database once. The load is
	// detached from the caller so one canceled request does not fail the
	// others waiting on it.
	ch := r.group.DoChan(cache.Key(id), func() (any, error) {
		return r.load(context.WithoutCancel(ctx), id)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		u, _ := res.Val.(*domain.User)
		return u, nil
	}
}

func (r *CachedUserRepository) load(ctx context.Context, id string) (*domain.User, error) {
	if r.cache != nil {
		cachedUser, err := r.cache.Get(ctx, id)
		if err == nil && cachedUser != nil {
			return cachedUser, nil
		}
	}

	r.beginLoad(id)
	u, err := r.dbRepo.GetByID(ctx, id)

	// Misses are not cached
	if err == nil && r.cache != nil && u != nil {
		if err := r.cache.Set(ctx, u); err != nil {
			logger.WithContext(ctx, r.log).Warn("failed to cache user", zap.String("id", id), zap.Error(err))
		}
	}

	// An invalidation that raced with the read may have been overtaken by
	// the Set above
	if r.endLoad(id) {
		r.evict(ctx, id, "concurrent write")
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *CachedUserRepository) beginLoad(id string) {
	r.mu.Lock()
	r.loading[id]++
	r.mu.Unlock()
}

// endLoad reports whether id was invalidated while the load was in flight.
func (r *CachedUserRepository) endLoad(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	stale := r.stale[id]
	r.loading[id]--
	if r.loading[id] == 0 {
		delete(r.loading, id)
		delete(r.stale, id)
	}
	return stale
}

// GetByUsername delegates to the DB repository.
func (r *CachedUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.dbRepo.GetByUsername(ctx, username)
}

// ListPaged delegates to the DB repository.
func (r *CachedUserRepository) ListPaged(ctx context.Context, p domain.PageRequest) (*domain.PagedResult, error) {
	return r.dbRepo.ListPaged(ctx, p)
}

// SearchPaged delegates to the DB repository.
func (r *CachedUserRepository) SearchPaged(ctx context.Context, username string, p domain.PageRequest) (*domain.PagedResult, error) {
	return r.dbRepo.SearchPaged(ctx, username, p)
}

// UpdateByUsername updates the user in DB and invalidates the cache entry of
// the updated user.
func (r *CachedUserRepository) UpdateByUsername(ctx context.Context, username string, patch domain.Patch) (*domain.User, error) {
	updated, err := r.dbRepo.UpdateByUsername(ctx, username, patch)
	if err != nil || updated == nil {
		return updated, err
	}

	r.invalidate(ctx, updated.ID, "update")
	return updated, nil
}

// Delete deletes the user from DB and invalidates the cache.
func (r *CachedUserRepository) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := r.dbRepo.Delete(ctx, id)
	if err != nil {
		return false, err
	}

	if deleted {
		r.invalidate(ctx, id, "delete")
	}
	return deleted, nil
}

func (r *CachedUserRepository) invalidate(ctx context.Context, id, op string) {
	if r.cache == nil {
		return
	}

	r.mu.Lock()
	if r.loading[id] > 0 {
		r.stale[id] = true
	}
	r.mu.Unlock()

	r.evict(ctx, id, op)
}

func (r *CachedUserRepository) evict(ctx context.Context, id, op string) {
	if err := r.cache.Delete(ctx, id); err != nil {
		logger.WithContext(ctx, r.log).Warn("failed to invalidate cache after "+op, zap.String("id", id), zap.Error(err))
	}
}
