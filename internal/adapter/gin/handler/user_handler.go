package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"mongo-user-service/internal/usecase/user"
	pkgerrors "mongo-user-service/pkg/errors"
	"mongo-user-service/pkg/logger"
)

// UsersPath is the collection path of the users API.
const UsersPath = "/api/v1/users"

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	uc  user.Usecase
	log *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(uc user.Usecase, log *zap.Logger) *UserHandler {
	return &UserHandler{
		uc:  uc,
		log: log,
	}
}

// CreateUserRequest represents the HTTP request body for creating a user
type CreateUserRequest struct {
	Username  string  `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

// UpdateUserRequest represents the HTTP request body for updating a user.
// Omitted or empty fields keep their stored value.
type UpdateUserRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

// SearchUsersRequest represents the HTTP request body for searching users
type SearchUsersRequest struct {
	Username string `json:"username"`
	Page     int64  `json:"page"`
	PageSize int64  `json:"pageSize"`
}

// UserResponse represents the HTTP response for user data
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     *string   `json:"email"`
	FirstName *string   `json:"firstName"`
	LastName  *string   `json:"lastName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PagedResponse represents one page of users
type PagedResponse struct {
	Data       []UserResponse `json:"data"`
	Page       int64          `json:"page"`
	PageSize   int64          `json:"pageSize"`
	TotalCount int64          `json:"totalCount"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ListUsers handles GET /api/v1/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	// Unparseable values fall through as zero and get clamped downstream
	page := queryInt64(c, "page")
	pageSize := queryInt64(c, "pageSize")

	logger.WithContext(c.Request.Context(), h.log).Debug("Gin ListUsers request", zap.Int64("page", page), zap.Int64("page_size", pageSize))

	resp, err := h.uc.ListUsers(c.Request.Context(), user.ListUsersRequest{
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPagedResponse(resp))
}

// SearchUsers handles POST /api/v1/users/search
func (h *UserHandler) SearchUsers(c *gin.Context) {
	var req SearchUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	logger.WithContext(c.Request.Context(), h.log).Debug("Gin SearchUsers request", zap.String("username", req.Username), zap.Int64("page", req.Page))

	resp, err := h.uc.SearchUsers(c.Request.Context(), user.SearchUsersRequest{
		Username: req.Username,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPagedResponse(resp))
}

// CreateUser handles POST /api/v1/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	logger.WithContext(c.Request.Context(), h.log).Debug("Gin CreateUser request", zap.String("username", req.Username))

	resp, err := h.uc.CreateUser(c.Request.Context(), user.CreateUserRequest{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Location", UsersPath+"/"+resp.ID)
	c.JSON(http.StatusCreated, toUserResponse(resp))
}

// UpdateUser handles PUT /api/v1/users/:username
func (h *UserHandler) UpdateUser(c *gin.Context) {
	username := c.Param("username")

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	logger.WithContext(c.Request.Context(), h.log).Debug("Gin UpdateUser request", zap.String("username", username))

	resp, err := h.uc.UpdateUser(c.Request.Context(), user.UpdateUserRequest{
		Username:  username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(resp))
}

// GetUser handles GET /api/v1/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id := c.Param("id")

	resp, err := h.uc.GetUser(c.Request.Context(), user.GetUserRequest{ID: id})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(resp))
}

// DeleteUser handles DELETE /api/v1/users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.uc.DeleteUser(c.Request.Context(), user.DeleteUserRequest{ID: id}); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *UserHandler) badRequest(c *gin.Context, err error) {
	logger.WithContext(c.Request.Context(), h.log).Warn("malformed request body", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: "Request body must be valid JSON",
	})
}

// errorKinds maps the gRPC code carried by a usecase error to its HTTP status
// and error kind.
var errorKinds = map[codes.Code]struct {
	status int
	kind   string
}{
	codes.InvalidArgument: {http.StatusBadRequest, "validation_error"},
	codes.NotFound:        {http.StatusNotFound, "not_found"},
	codes.AlreadyExists:   {http.StatusConflict, "already_exists"},
	codes.Internal:        {http.StatusInternalServerError, "internal_error"},
}

// handleError converts usecase errors to HTTP responses through the status
// each error carries. Internal failures are already logged by the usecase and
// their status only holds the public message.
func (h *UserHandler) handleError(c *gin.Context, err error) {
	var statuser pkgerrors.GRPCStatuser
	if errors.As(err, &statuser) {
		st := statuser.GRPCStatus()
		if k, ok := errorKinds[st.Code()]; ok {
			c.JSON(k.status, ErrorResponse{Error: k.kind, Message: st.Message()})
			return
		}
	}

	logger.WithContext(c.Request.Context(), h.log).Error("unclassified error", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "An internal error occurred"})
}

func queryInt64(c *gin.Context, key string) int64 {
	n, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: u.CreatedAt.UTC(),
		UpdatedAt: u.UpdatedAt.UTC(),
	}
}

func toPagedResponse(resp *user.PagedUsersResponse) PagedResponse {
	data := make([]UserResponse, len(resp.Users))
	for i := range resp.Users {
		data[i] = toUserResponse(&resp.Users[i])
	}
	return PagedResponse{
		Data:       data,
		Page:       resp.Page,
		PageSize:   resp.PageSize,
		TotalCount: resp.TotalCount,
	}
}
