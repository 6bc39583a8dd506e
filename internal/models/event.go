package models

import "time"

type CostType string

const (
	CostTypeFree CostType = "free"
	CostTypePaid CostType = "paid"
)

func (c CostType) Valid() bool {
	return c == CostTypeFree || c == CostTypePaid
}

// DateLayout is the wire and storage format of event dates.
const DateLayout = "2006-01-02"

// Event dates are calendar dates in DateLayout, so string comparison orders them.
type Event struct {
	ID             string
	Title          string
	Venue          string
	StartDate      string
	EndDate        string
	Time           string
	CostType       CostType
	Description    string
	Image          string
	OrganizerEmail string
	CreatedByEmail string
	CreatedAt      time.Time
}
