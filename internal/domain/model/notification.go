package model

import "time"

// NotificationKind names the event a notification reports.
type NotificationKind string

const (
	NotifyRequestReceived NotificationKind = "request_received"
	NotifyRequestAccepted NotificationKind = "request_accepted"
	NotifyRequestRejected NotificationKind = "request_rejected"
	NotifyMatchScheduled  NotificationKind = "match_scheduled"
	NotifyMatchCompleted  NotificationKind = "match_completed"
)

// Notification is a best-effort message to participants. Delivery failures never
// roll back the transition that produced it.
type Notification struct {
	ID         string
	Kind       NotificationKind
	MatchID    MatchID
	Recipients []string
	Payload    map[string]any
	CreatedAt  time.Time
}
