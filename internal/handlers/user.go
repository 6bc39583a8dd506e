package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"eventhub/internal/apperr"
	"eventhub/internal/middleware"
	"eventhub/internal/service"
)

type dashboardUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type userDashboardResponse struct {
	Message string          `json:"message"`
	User    dashboardUser   `json:"user"`
	Events  []eventResponse `json:"events"`
}

// UserDashboard lists events filtered by ?type=, ?location= and ?date=.
func (h HandlerSet) UserDashboard(c *gin.Context) {
	user, ok := middleware.CurrentAccount(c)
	if !ok {
		h.respondError(c, apperr.Unauthorized("Unauthorized"))
		return
	}

	events, err := h.events.Query(c.Request.Context(), service.ParseEventFilter(c.Request.URL.Query()))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, userDashboardResponse{
		Message: "Dashboard data retrieved successfully",
		User:    dashboardUser{Name: user.Name, Email: user.Email},
		Events:  h.toEventResponses(events),
	})
}
