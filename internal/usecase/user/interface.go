package user

import (
	"context"

	domain "mongo-user-service/internal/domain/user"
)

// Usecase defines the interface for user business logic operations.
type Usecase interface {
	CreateUser(ctx context.Context, in CreateUserRequest) (*User, error)
	UpdateUser(ctx context.Context, in UpdateUserRequest) (*User, error)
	DeleteUser(ctx context.Context, in DeleteUserRequest) (*DeleteUserResponse, error)
	GetUser(ctx context.Context, in GetUserRequest) (*User, error)
	ListUsers(ctx context.Context, in ListUsersRequest) (*PagedUsersResponse, error)
	SearchUsers(ctx context.Context, in SearchUsersRequest) (*PagedUsersResponse, error)
}

// Repository defines the user store gateway. It is the only component that
// talks to the store; implementations exist for MongoDB and PostgreSQL.
//
// A lookup miss is reported as a nil user and a nil error. Create reports an
// exact username collision as domain.ErrDuplicateUsername. Every other error
// is a store failure.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	ListPaged(ctx context.Context, p domain.PageRequest) (*domain.PagedResult, error)
	SearchPaged(ctx context.Context, username string, p domain.PageRequest) (*domain.PagedResult, error)
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	UpdateByUsername(ctx context.Context, username string, patch domain.Patch) (*domain.User, error)
	Delete(ctx context.Context, id string) (bool, error)
}
