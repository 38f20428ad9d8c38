package user

import "errors"

// ErrDuplicateUsername is returned by stores when a user with exactly the
// same username already exists.
var ErrDuplicateUsername = errors.New("a user with the given username already exists")
