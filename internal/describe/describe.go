// Package describe produces marketing copy for events. Generation is best
// effort: Describer.Describe always returns text.
package describe

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"eventhub/internal/metrics"
)

const FallbackText = "An exciting event awaits you! Stay tuned for more details."

// Details are the event fields a description is written from.
type Details struct {
	Title     string
	Venue     string
	StartDate string
	EndDate   string
	Time      string
	CostType  string
}

type Generator interface {
	Generate(ctx context.Context, details Details) (string, error)
}

// Static always answers with FallbackText. Used when no API key is configured.
type Static struct{}

func (Static) Generate(context.Context, Details) (string, error) {
	return FallbackText, nil
}

type Describer struct {
	gen     Generator
	timeout time.Duration
	log     zerolog.Logger
}

func NewDescriber(gen Generator, timeout time.Duration, log zerolog.Logger) *Describer {
	if gen == nil {
		gen = Static{}
	}
	return &Describer{
		gen:     gen,
		timeout: timeout,
		log:     log.With().Str("component", "describer").Logger(),
	}
}

func (d *Describer) Describe(ctx context.Context, details Details) string {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	text, err := d.gen.Generate(ctx, details)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		if err != nil {
			d.log.Warn().Err(err).Str("title", details.Title).Msg("description generation failed, using fallback")
		}
		metrics.DescriberRequestsTotal.WithLabelValues("fallback").Inc()
		return FallbackText
	}

	metrics.DescriberRequestsTotal.WithLabelValues("generated").Inc()
	return text
}

// Prompt renders the instruction sent to the model.
func Prompt(details Details) string {
	var b strings.Builder
	b.WriteString("Write an engaging event description (under 100 words) for:\n")
	b.WriteString("- Title: " + details.Title + "\n")
	b.WriteString("- Venue: " + details.Venue + "\n")
	b.WriteString("- Date: " + details.StartDate + " to " + details.EndDate + "\n")
	b.WriteString("- Time: " + details.Time + "\n")
	b.WriteString("- Cost Type: " + titleCase(details.CostType) + "\n")
	b.WriteString("Use a fun and informative tone.")
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
