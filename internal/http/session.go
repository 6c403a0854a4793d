package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"moodtrack/internal/service"
)

type signupRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginRequest accepts both an urlencoded form and a JSON body.
type loginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Name, req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.logger(c).WithField("user_id", user.ID).Info("user registered")
	c.JSON(http.StatusCreated, userToResponse(*user))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, errorResponse{Error: "Incorrect username or password"})
			return
		}
		h.writeError(c, err)
		return
	}

	token, err := h.codec.Issue(user.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setSessionCookie(c, token)
	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.tokenTTL / time.Second),
	})
}

// logout only drops the cookie; an issued token stays valid until it ages out.
func (h *Handler) logout(c *gin.Context) {
	h.clearSessionCookie(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, userToResponse(*mustUser(c)))
}
