package models

// NotificationKind distinguishes the events the dispatcher handles.
type NotificationKind string

const (
	NotificationDetentionAssigned NotificationKind = "detention_assigned"
	NotificationDetentionBooked   NotificationKind = "detention_booked"
	NotificationDetentionResolved NotificationKind = "detention_resolved"
)

// Notification is the payload handed to the dispatch queue.
// Delivery is fire-and-forget: failures are logged and retried by the
// queue but never affect the originating operation.
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	Recipient   string           `json:"recipient"`
	StudentName string           `json:"student_name"`
	Subject     string           `json:"subject"`
	Body        string           `json:"body"`
}
