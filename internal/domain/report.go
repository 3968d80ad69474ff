package domain

import "time"

type ReportStatus string

const (
	StatusSubmitted    ReportStatus = "submitted"
	StatusAcknowledged ReportStatus = "acknowledged"
	StatusInProgress   ReportStatus = "in_progress"
	StatusResolved     ReportStatus = "resolved"
	StatusClosed       ReportStatus = "closed"
)

func ParseReportStatus(s string) (ReportStatus, bool) {
	switch ReportStatus(s) {
	case StatusSubmitted, StatusAcknowledged, StatusInProgress, StatusResolved, StatusClosed:
		return ReportStatus(s), true
	default:
		return "", false
	}
}

// DisplayText is the human-readable form used in notification emails.
func (s ReportStatus) DisplayText() string {
	switch s {
	case StatusSubmitted:
		return "Submitted"
	case StatusAcknowledged:
		return "Acknowledged"
	case StatusInProgress:
		return "In Progress"
	case StatusResolved:
		return "Resolved"
	case StatusClosed:
		return "Closed"
	default:
		return "Updated"
	}
}

// Terminal reports whether no further transitions are permitted. Closed is
// the only terminal state; Resolved may be re-entered before Closed.
func (s ReportStatus) Terminal() bool {
	return s == StatusClosed
}

type Report struct {
	ID               int64        `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Category         string       `json:"category"`
	LocationAddress  string       `json:"location_address,omitempty"`
	Status           ReportStatus `json:"status"`
	Priority         int          `json:"priority"`
	CreatedByUserID  int64        `json:"created_by_user_id"`
	AssignedToUserID *int64       `json:"assigned_to_user_id,omitempty"`
	UpdatedByUserID  *int64       `json:"updated_by_user_id,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	ResolvedAt       *time.Time   `json:"resolved_at,omitempty"`
}

type CreateReportRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	LocationAddress string `json:"location_address"`
	Priority        int    `json:"priority"`
}

type ReportFilter struct {
	Status   *ReportStatus
	Category string
	Limit    int
	Offset   int
}

const (
	MinPriority     = 1
	MaxPriority     = 3
	DefaultPriority = 2
)

func (r *CreateReportRequest) Normalize() {
	r.Title = trimmed(r.Title)
	r.Description = trimmed(r.Description)
	r.Category = trimmed(r.Category)
	r.LocationAddress = trimmed(r.LocationAddress)
	if r.Priority == 0 {
		r.Priority = DefaultPriority
	}
}

func (r *CreateReportRequest) Validate() error {
	if r.Title == "" {
		return errRequired("title")
	}
	if r.Description == "" {
		return errRequired("description")
	}
	if r.Category == "" {
		return errRequired("category")
	}
	if r.Priority < MinPriority || r.Priority > MaxPriority {
		return errRange("priority")
	}
	return nil
}
