package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventhub/internal/models"
)

// EventQuery is a resolved listing filter. Zero-valued fields match every
// event. Date bounds are inclusive and formatted as models.DateLayout.
type EventQuery struct {
	CostType  models.CostType
	Location  string
	StartFrom string
	StartTo   string
	CreatedBy string
}

// Matches evaluates the query in memory with the same semantics as the SQL
// built by where.
func (q EventQuery) Matches(event models.Event) bool {
	if q.CostType != "" && event.CostType != q.CostType {
		return false
	}
	if q.Location != "" && !strings.Contains(strings.ToLower(event.Venue), strings.ToLower(q.Location)) {
		return false
	}
	if q.StartFrom != "" && event.StartDate < q.StartFrom {
		return false
	}
	if q.StartTo != "" && event.StartDate > q.StartTo {
		return false
	}
	if q.CreatedBy != "" && event.CreatedByEmail != q.CreatedBy {
		return false
	}
	return true
}

func (q EventQuery) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(format string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(format, "$"+strconv.Itoa(len(args))))
	}

	if q.CostType != "" {
		add("cost_type = %s", string(q.CostType))
	}
	if q.Location != "" {
		// strpos keeps the match literal; ILIKE would treat % and _ as wildcards
		add("strpos(lower(venue), lower(%s)) > 0", q.Location)
	}
	if q.StartFrom != "" {
		add("start_date >= %s::date", q.StartFrom)
	}
	if q.StartTo != "" {
		add("start_date <= %s::date", q.StartTo)
	}
	if q.CreatedBy != "" {
		add("created_by_email = %s", q.CreatedBy)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

const eventColumns = `
	id, title, venue, to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'),
	event_time, cost_type, description, image_ref, organizer_email, created_by_email, created_at
`

func (r *EventRepository) Create(ctx context.Context, event models.Event) (models.Event, error) {
	const query = `
		INSERT INTO events (
			id, title, venue, start_date, end_date, event_time, cost_type,
			description, image_ref, organizer_email, created_by_email, created_at
		) VALUES (
			$1, $2, $3, $4::date, $5::date, $6, $7,
			$8, $9, $10, $11, NOW()
		)
		RETURNING created_at
	`

	row := r.pool.QueryRow(ctx, query,
		event.ID,
		event.Title,
		event.Venue,
		event.StartDate,
		event.EndDate,
		event.Time,
		string(event.CostType),
		event.Description,
		event.Image,
		event.OrganizerEmail,
		event.CreatedByEmail,
	)
	if err := row.Scan(&event.CreatedAt); err != nil {
		return models.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// Query returns matching events in insertion order.
func (r *EventRepository) Query(ctx context.Context, q EventQuery) ([]models.Event, error) {
	where, args := q.where()
	query := `SELECT ` + eventColumns + ` FROM events ` + where + ` ORDER BY seq`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *EventRepository) ListByCreator(ctx context.Context, email string) ([]models.Event, error) {
	return r.Query(ctx, EventQuery{CreatedBy: email})
}

func scanEvent(row pgx.Row) (models.Event, error) {
	var (
		event    models.Event
		costType string
	)
	if err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Venue,
		&event.StartDate,
		&event.EndDate,
		&event.Time,
		&costType,
		&event.Description,
		&event.Image,
		&event.OrganizerEmail,
		&event.CreatedByEmail,
		&event.CreatedAt,
	); err != nil {
		return models.Event{}, fmt.Errorf("scan event: %w", err)
	}
	event.CostType = models.CostType(costType)
	return event, nil
}
