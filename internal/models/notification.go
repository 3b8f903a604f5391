package models

// Severity classifies an in-app notification.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Notification is an in-app message for a single user.
type Notification struct {
	ID       string
	UserID   string
	RoomID   string
	Content  string
	Severity Severity
	Read     bool

	CreatedAt int64
}
