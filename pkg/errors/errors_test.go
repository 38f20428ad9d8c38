package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorsCarryGRPCCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{name: "validation", err: NewValidationError("username", "Username is required"), code: codes.InvalidArgument},
		{name: "not found", err: ErrUserNotFound, code: codes.NotFound},
		{name: "already exists", err: ErrDuplicateUsername, code: codes.AlreadyExists},
		{name: "internal", err: NewInternalError("failed", stderrors.New("socket closed")), code: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := status.FromError(tt.err)
			assert.True(t, ok)
			assert.Equal(t, tt.code, st.Code())
		})
	}
}

func TestInternalError_HidesCauseFromStatus(t *testing.T) {
	cause := stderrors.New("connection refused 10.0.0.3:27017")
	err := NewInternalError("An error occurred while creating the user", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "An error occurred while creating the user", err.GRPCStatus().Message())
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "Username is required", NewValidationError("username", "Username is required").Error())
	assert.Equal(t, "User not found", ErrUserNotFound.Error())
	assert.Equal(t, "user not found", NewNotFoundError("user", "").Error())
	assert.Equal(t, "user already exists", NewAlreadyExistsError("user", "").Error())
}

func TestGRPCStatuser_MatchesWrappedErrors(t *testing.T) {
	err := fmt.Errorf("update user: %w", ErrUserNotFound)

	var statuser GRPCStatuser
	assert.True(t, stderrors.As(err, &statuser))
	assert.Equal(t, codes.NotFound, statuser.GRPCStatus().Code())
	assert.Equal(t, "User not found", statuser.GRPCStatus().Message())
}
