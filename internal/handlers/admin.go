package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"eventhub/internal/apperr"
	"eventhub/internal/middleware"
	"eventhub/internal/models"
	"eventhub/internal/service"
)

type eventResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Venue       string    `json:"venue"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	Time        string    `json:"time"`
	CostType    string    `json:"cost_type"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	ImageURL    string    `json:"image_url"`
	Organizer   string    `json:"organizer"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type createEventResponse struct {
	Message  string        `json:"message"`
	Redirect string        `json:"redirect"`
	Event    eventResponse `json:"event"`
}

type eventsResponse struct {
	Events []eventResponse `json:"events"`
}

type descriptionResponse struct {
	Description string `json:"description"`
}

func (h HandlerSet) CreateEvent(c *gin.Context) {
	admin, ok := middleware.CurrentAccount(c)
	if !ok {
		h.respondError(c, apperr.Unauthorized("Unauthorized"))
		return
	}

	image, err := h.readImage(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	generate, _ := strconv.ParseBool(c.PostForm("generate_description"))
	event, err := h.events.Create(c.Request.Context(), admin, service.CreateEventInput{
		EventDetails: service.EventDetails{
			Title:     c.PostForm("title"),
			Venue:     c.PostForm("venue"),
			StartDate: c.PostForm("start_date"),
			EndDate:   c.PostForm("end_date"),
			Time:      c.PostForm("time"),
			CostType:  c.PostForm("cost_type"),
		},
		GenerateDescription: generate,
		Description:         c.PostForm("description"),
		Image:               image,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, createEventResponse{
		Message:  "Event created successfully",
		Redirect: "/admin/dashboard",
		Event:    h.toEventResponse(event),
	})
}

// readImage returns nil when no file was sent; the service reports that.
func (h HandlerSet) readImage(c *gin.Context) (*service.ImageUpload, error) {
	header, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, apperr.Validation("Image must be <= 5MB")
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			return nil, nil
		default:
			return nil, apperr.Validation("Invalid multipart form")
		}
	}

	maxBytes := h.cfg.Events.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = service.DefaultMaxImageBytes
	}
	if header.Size > maxBytes {
		return nil, apperr.Validation("Image must be <= 5MB")
	}

	data, err := readFile(header, maxBytes)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "read upload", err)
	}

	return &service.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readFile(header *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	// one extra byte lets the service see an oversized file
	return io.ReadAll(io.LimitReader(file, maxBytes+1))
}

func (h HandlerSet) AdminDashboard(c *gin.Context) {
	admin, ok := middleware.CurrentAccount(c)
	if !ok {
		h.respondError(c, apperr.Unauthorized("Unauthorized"))
		return
	}

	events, err := h.events.ListByCreator(c.Request.Context(), admin.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, eventsResponse{Events: h.toEventResponses(events)})
}

func (h HandlerSet) GenerateDescription(c *gin.Context) {
	var req service.EventDetails
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errInvalidJSON)
		return
	}

	text, err := h.events.GenerateDescription(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, descriptionResponse{Description: text})
}

func (h HandlerSet) toEventResponse(event models.Event) eventResponse {
	resp := eventResponse{
		ID:          event.ID,
		Title:       event.Title,
		Venue:       event.Venue,
		StartDate:   event.StartDate,
		EndDate:     event.EndDate,
		Time:        event.Time,
		CostType:    string(event.CostType),
		Description: event.Description,
		Image:       event.Image,
		Organizer:   event.OrganizerEmail,
		CreatedBy:   event.CreatedByEmail,
		CreatedAt:   event.CreatedAt,
	}
	if h.images != nil {
		resp.ImageURL = h.images.URL(event.Image)
	}
	return resp
}

func (h HandlerSet) toEventResponses(events []models.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, h.toEventResponse(event))
	}
	return out
}
