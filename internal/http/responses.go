package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"moodtrack/internal/domain"
	"moodtrack/internal/service"
	"moodtrack/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

type UserResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type EntryResponse struct {
	ID        int64   `json:"id"`
	UserID    int64   `json:"user_id"`
	MoodScore int     `json:"mood_score"`
	Comment   *string `json:"comment"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type ExportResponse struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	URL      string `json:"url"`
	Count    int    `json:"count"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func userToResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Username:  user.Username,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func entryToResponse(entry domain.Entry) EntryResponse {
	return EntryResponse{
		ID:        entry.ID,
		UserID:    entry.UserID,
		MoodScore: entry.MoodScore,
		Comment:   entry.Comment,
		CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: entry.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.UTC().Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}

// writeError maps service errors onto status codes. Unknown errors are
// logged and answered with a generic 500.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidMoodScore),
		errors.Is(err, domain.ErrCommentTooLong),
		errors.Is(err, service.ErrNameRequired),
		errors.Is(err, service.ErrUsernameRequired),
		errors.Is(err, service.ErrPasswordTooShort),
		errors.Is(err, service.ErrPasswordTooLong):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrEntryNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrUserAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, service.ErrExportDisabled):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger(c).WithError(err).Error("request failed")
		c.JSON(status, errorResponse{Error: "internal server error"})
		return
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}
