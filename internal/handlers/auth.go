package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"eventhub/internal/apperr"
	"eventhub/internal/models"
	"eventhub/internal/service"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Redirect  string    `json:"redirect"`
}

type messageResponse struct {
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

var errInvalidJSON = apperr.Validation("Invalid JSON")

func (h HandlerSet) AdminRegister(c *gin.Context) {
	h.register(c, models.RoleAdmin, messageResponse{Message: "Admin registered successfully", Redirect: "/admin/login"})
}

func (h HandlerSet) UserSignup(c *gin.Context) {
	h.register(c, models.RoleUser, messageResponse{Message: "Signup successful", Redirect: "/user/login"})
}

func (h HandlerSet) register(c *gin.Context, role models.Role, ok messageResponse) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errInvalidJSON)
		return
	}

	_, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Role:     role,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ok)
}

func (h HandlerSet) AdminLogin(c *gin.Context) {
	h.login(c, models.RoleAdmin, "/admin/create-event")
}

func (h HandlerSet) UserLogin(c *gin.Context) {
	h.login(c, models.RoleUser, "/user/home")
}

func (h HandlerSet) login(c *gin.Context, role models.Role, redirect string) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errInvalidJSON)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), role, req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Message:   "Login successful",
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.UTC(),
		Redirect:  redirect,
	})
}
