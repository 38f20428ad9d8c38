package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"go.uber.org/zap"

	domain "mongo-user-service/internal/domain/user"
	pkgerrors "mongo-user-service/pkg/errors"
	"mongo-user-service/pkg/logger"
)

// Service implements Usecase on top of a Repository.
// It provides a clean separation between the transport layer and data layer.
type Service struct {
	repo     Repository          // Repository for data access
	log      *zap.Logger         // Logger for structured logging
	validate *validator.Validate // Validator for request validation
}

var _ Usecase = (*Service)(nil)

// New creates a new Service with the provided repository and logger.
func New(r Repository, log *zap.Logger) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	// notblank also rejects whitespace-only strings, unlike required.
	mustRegister(v, "notblank", validators.NotBlank)
	// Neither store can match or persist NUL in a username.
	mustRegister(v, "nonul", func(fl validator.FieldLevel) bool {
		return !strings.ContainsRune(fl.Field().String(), 0)
	})

	return &Service{repo: r, log: log, validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("user: register %q validation: %v", tag, err))
	}
}

// formatValidationError converts validator.ValidationErrors into a ValidationError.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return pkgerrors.NewValidationError("", err.Error())
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required", "notblank":
			messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
		case "nonul":
			messages = append(messages, fmt.Sprintf("%s must not contain NUL characters", e.Field()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", e.Field()))
		}
	}
	return pkgerrors.NewValidationError(validationErrors[0].Field(), strings.Join(messages, ", "))
}

// CreateUser creates a new user after validating the request. An exact
// username collision yields pkgerrors.ErrDuplicateUsername.
func (uc *Service) CreateUser(ctx context.Context, in CreateUserRequest) (*User, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("creating user", zap.String("username", in.Username))

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	created, err := uc.repo.Create(ctx, &domain.User{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateUsername) {
			log.Warn("username already exists", zap.String("username", in.Username))
			return nil, pkgerrors.ErrDuplicateUsername
		}
		log.Error("failed to create user", zap.String("username", in.Username), zap.Error(err))
		return nil, pkgerrors.NewInternalError("An error occurred while creating the user", err)
	}

	return toDTO(created), nil
}

// UpdateUser merges the non-empty fields of the request into the user with
// the given username. A missing user yields pkgerrors.ErrUserNotFound.
func (uc *Service) UpdateUser(ctx context.Context, in UpdateUserRequest) (*User, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("updating user", zap.String("username", in.Username))

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	updated, err := uc.repo.UpdateByUsername(ctx, in.Username, domain.Patch{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		log.Error("failed to update user", zap.String("username", in.Username), zap.Error(err))
		return nil, pkgerrors.NewInternalError("An error occurred while updating the user", err)
	}
	if updated == nil {
		log.Warn("user not found for update", zap.String("username", in.Username))
		return nil, pkgerrors.ErrUserNotFound
	}

	return toDTO(updated), nil
}

// DeleteUser deletes a user by ID. Deleting an unknown ID yields
// pkgerrors.ErrUserNotFound.
func (uc *Service) DeleteUser(ctx context.Context, in DeleteUserRequest) (*DeleteUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("deleting user", zap.String("id", in.ID))

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("delete user validation failed", zap.String("id", in.ID), zap.Error(err))
		return nil, formatValidationError(err)
	}

	deleted, err := uc.repo.Delete(ctx, in.ID)
	if err != nil {
		log.Error("failed to delete user", zap.String("id", in.ID), zap.Error(err))
		return nil, pkgerrors.NewInternalError("An error occurred while deleting the user", err)
	}
	if !deleted {
		return nil, pkgerrors.ErrUserNotFound
	}

	return &DeleteUserResponse{ID: in.ID}, nil
}

// GetUser retrieves a user by ID.
func (uc *Service) GetUser(ctx context.Context, in GetUserRequest) (*User, error) {
	log := logger.WithContext(ctx, uc.log)

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("get user validation failed", zap.String("id", in.ID), zap.Error(err))
		return nil, formatValidationError(err)
	}

	u, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		log.Error("failed to get user", zap.String("id", in.ID), zap.Error(err))
		return nil, pkgerrors.NewInternalError("An error occurred while retrieving the user", err)
	}
	if u == nil {
		return nil, pkgerrors.ErrUserNotFound
	}

	return toDTO(u), nil
}

// ListUsers retrieves a page of all users, newest first.
func (uc *Service) ListUsers(ctx context.Context, in ListUsersRequest) (*PagedUsersResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	p := domain.NewPageRequest(in.Page, in.PageSize)

	log.Info("listing users", zap.Int64("page", p.Page), zap.Int64("page_size", p.PageSize))

	res, err := uc.repo.ListPaged(ctx, p)
	if err != nil {
		log.Error("failed to list users", zap.Int64("page", p.Page), zap.Int64("page_size", p.PageSize), zap.Error(err))
		return nil, pkgerrors.NewInternalError("An error occurred while listing users", err)
	}

	return toPagedDTO(res), nil
}

// SearchUsers retrieves a page of users whose username contains the given
// term, ignoring case.
func (uc *Service) SearchUsers(ctx context.Context, in SearchUsersRequest) (*PagedUsersResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	p := domain.NewPageRequest(in.Page, in.PageSize)
	log.Info("searching users", zap.String("username", in.Username), zap.Int64("page", p.Page), zap.Int64("page_size", p.PageSize))

	res, err := uc.repo.SearchPaged(ctx, in.Username, p)
	if err != nil {
		log.Error("failed to search users", zap.String("username", in.Username), zap.Error(err))
		return nil, pkgerrors.NewInternalError("An error occurred while searching users", err)
	}

	return toPagedDTO(res), nil
}

func toDTO(u *domain.User) *User {
	return &User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toPagedDTO(res *domain.PagedResult) *PagedUsersResponse {
	users := make([]User, len(res.Users))
	for i := range res.Users {
		users[i] = *toDTO(&res.Users[i])
	}
	return &PagedUsersResponse{
		Users:      users,
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalCount: res.TotalCount,
	}
}
