package user

import "time"

// CreateUserRequest represents the request payload for creating a new user.
type CreateUserRequest struct {
	Username  string `validate:"notblank,nonul"`
	Email     *string
	FirstName *string
	LastName  *string
}

// UpdateUserRequest represents a partial update of the user identified by
// Username. Nil or empty fields are left unchanged.
type UpdateUserRequest struct {
	Username  string `validate:"notblank,nonul"`
	Email     *string
	FirstName *string
	LastName  *string
}

// GetUserRequest represents the request payload for retrieving a user.
type GetUserRequest struct {
	ID string `validate:"notblank"`
}

// DeleteUserRequest represents the request payload for deleting a user.
type DeleteUserRequest struct {
	ID string `validate:"notblank"`
}

// DeleteUserResponse represents the response payload after deleting a user.
type DeleteUserResponse struct {
	ID string
}

// ListUsersRequest represents the request payload for listing users.
// Out-of-range values are clamped.
type ListUsersRequest struct {
	Page     int64
	PageSize int64
}

// SearchUsersRequest represents a case-insensitive substring search on
// usernames. Out-of-range paging values are clamped.
type SearchUsersRequest struct {
	Username string `validate:"notblank,nonul"`
	Page     int64
	PageSize int64
}

// PagedUsersResponse represents one page of users.
type PagedUsersResponse struct {
	Users      []User
	Page       int64
	PageSize   int64
	TotalCount int64
}

// User represents a user DTO (Data Transfer Object) for API responses.
type User struct {
	ID        string
	Username  string
	Email     *string
	FirstName *string
	LastName  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
