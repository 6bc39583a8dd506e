package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"eventhub/internal/apperr"
	"eventhub/internal/describe"
	"eventhub/internal/ids"
	"eventhub/internal/media/sniffer"
	"eventhub/internal/metrics"
	"eventhub/internal/models"
	"eventhub/internal/queue"
	"eventhub/internal/repository"
)

const DefaultMaxImageBytes = 5 << 20

type EventStore interface {
	Create(ctx context.Context, event models.Event) (models.Event, error)
	Query(ctx context.Context, q repository.EventQuery) ([]models.Event, error)
	ListByCreator(ctx context.Context, email string) ([]models.Event, error)
}

type BlobStore interface {
	Store(ctx context.Context, data []byte, mimeType string) (string, error)
	Remove(ctx context.Context, ref string) error
}

type DescriptionWriter interface {
	Describe(ctx context.Context, details describe.Details) string
}

type TaskPublisher interface {
	Publish(ctx context.Context, task queue.Task) error
}

// EventDetails are the fields shared by event creation and description
// generation.
type EventDetails struct {
	Title     string `json:"title" validate:"required,storable,max=50"`
	Venue     string `json:"venue" validate:"required,storable,max=150"`
	StartDate string `json:"start_date" validate:"required,isodate"`
	EndDate   string `json:"end_date" validate:"required,isodate"`
	Time      string `json:"time" validate:"required,storable"`
	CostType  string `json:"cost_type" validate:"required,costtype"`
}

func (d EventDetails) normalized() EventDetails {
	return EventDetails{
		Title:     strings.TrimSpace(d.Title),
		Venue:     strings.TrimSpace(d.Venue),
		StartDate: strings.TrimSpace(d.StartDate),
		EndDate:   strings.TrimSpace(d.EndDate),
		Time:      strings.TrimSpace(d.Time),
		CostType:  strings.TrimSpace(d.CostType),
	}
}

func (d EventDetails) validate() error {
	if err := validateStruct(d); err != nil {
		return err
	}
	// both parsed as DateLayout, so lexical order is date order
	if d.StartDate > d.EndDate {
		return apperr.Validation("Start date must be before end date")
	}
	return nil
}

func (d EventDetails) describeDetails() describe.Details {
	return describe.Details{
		Title:     d.Title,
		Venue:     d.Venue,
		StartDate: d.StartDate,
		EndDate:   d.EndDate,
		Time:      d.Time,
		CostType:  d.CostType,
	}
}

type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type CreateEventInput struct {
	EventDetails
	GenerateDescription bool
	Description         string
	Image               *ImageUpload
}

type EventServiceConfig struct {
	MaxImageBytes int64
	Location      *time.Location
}

type EventService struct {
	events    EventStore
	blobs     BlobStore
	describer DescriptionWriter
	tasks     TaskPublisher
	maxImage  int64
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

func NewEventService(events EventStore, blobs BlobStore, describer DescriptionWriter, tasks TaskPublisher, cfg EventServiceConfig, log zerolog.Logger) *EventService {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &EventService{
		events:    events,
		blobs:     blobs,
		describer: describer,
		tasks:     tasks,
		maxImage:  cfg.MaxImageBytes,
		loc:       cfg.Location,
		now:       time.Now,
		log:       log.With().Str("component", "events").Logger(),
	}
}

// WithClock replaces the clock used to resolve relative date filters.
func (s *EventService) WithClock(now func() time.Time) *EventService {
	s.now = now
	return s
}

// Create validates everything before any side effect, so a rejected request
// leaves neither a blob nor a row behind.
func (s *EventService) Create(ctx context.Context, admin models.Account, input CreateEventInput) (models.Event, error) {
	details := input.EventDetails.normalized()
	if err := details.validate(); err != nil {
		return models.Event{}, err
	}

	description := strings.TrimSpace(input.Description)
	if !storableText(description) {
		return models.Event{}, apperr.Validation("Description contains invalid characters")
	}

	image, err := s.checkImage(input.Image)
	if err != nil {
		return models.Event{}, err
	}

	if input.GenerateDescription {
		description = s.describer.Describe(ctx, details.describeDetails())
		if !storableText(description) {
			description = strings.ReplaceAll(strings.ToValidUTF8(description, ""), "\x00", "")
		}
	}

	ref, err := s.blobs.Store(ctx, input.Image.Data, image.MIME)
	if err != nil {
		return models.Event{}, apperr.Wrap(apperr.KindInternal, "store image", err)
	}

	event, err := s.events.Create(ctx, models.Event{
		ID:             ids.New(),
		Title:          details.Title,
		Venue:          details.Venue,
		StartDate:      details.StartDate,
		EndDate:        details.EndDate,
		Time:           details.Time,
		CostType:       models.CostType(details.CostType),
		Description:    description,
		Image:          ref,
		OrganizerEmail: admin.Email,
		CreatedByEmail: admin.Email,
	})
	if err != nil {
		if rmErr := s.blobs.Remove(context.WithoutCancel(ctx), ref); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("image_ref", ref).Msg("remove orphaned image failed")
		}
		return models.Event{}, apperr.Wrap(apperr.KindInternal, "save event", err)
	}
	metrics.EventsCreatedTotal.Inc()

	if s.tasks != nil {
		task := queue.Task{Type: queue.TaskImageVerify, EventID: event.ID, ImageRef: event.Image}
		if err := s.tasks.Publish(ctx, task); err != nil {
			s.log.Warn().Err(err).Str("event_id", event.ID).Msg("enqueue image verification failed")
		}
	}

	s.log.Info().Str("event_id", event.ID).Str("created_by", event.CreatedByEmail).Msg("event created")
	return event, nil
}

func (s *EventService) checkImage(upload *ImageUpload) (sniffer.Result, error) {
	if upload == nil || len(upload.Data) == 0 {
		return sniffer.Result{}, apperr.Validation("Image is required")
	}
	if int64(len(upload.Data)) > s.maxImage {
		return sniffer.Result{}, apperr.Validation("Image must be <= 5MB")
	}

	result, err := sniffer.Check(upload.Filename, upload.ContentType, upload.Data)
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, sniffer.ErrExtension):
		return sniffer.Result{}, apperr.Validation("Only .jpg, .jpeg, .png allowed")
	case errors.Is(err, sniffer.ErrExtensionMismatch):
		return sniffer.Result{}, apperr.Validation("Image content does not match its file extension")
	case errors.Is(err, sniffer.ErrDeclaredMismatch):
		return sniffer.Result{}, apperr.Validation("Image content does not match its declared type")
	default:
		return sniffer.Result{}, apperr.Validation("Image must be a JPEG or PNG file")
	}
}

func (s *EventService) Query(ctx context.Context, filter EventFilter) ([]models.Event, error) {
	events, err := s.events.Query(ctx, filter.Resolve(s.now(), s.loc))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "query events", err)
	}
	return events, nil
}

func (s *EventService) ListByCreator(ctx context.Context, email string) ([]models.Event, error) {
	events, err := s.events.ListByCreator(ctx, email)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list events", err)
	}
	return events, nil
}

// GenerateDescription never fails because of the generator; only invalid
// details are rejected.
func (s *EventService) GenerateDescription(ctx context.Context, details EventDetails) (string, error) {
	details = details.normalized()
	if err := details.validate(); err != nil {
		return "", err
	}
	return s.describer.Describe(ctx, details.describeDetails()), nil
}
