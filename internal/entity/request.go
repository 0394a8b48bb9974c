package entity

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusConfirmed RequestStatus = "CONFIRMED"
	RequestStatusRejected  RequestStatus = "REJECTED"
	RequestStatusCanceled  RequestStatus = "CANCELED"
)

type ParticipationRequest struct {
	ID          int64         `json:"id" db:"id"`
	EventID     int64         `json:"event" db:"event_id"`
	RequesterID int64         `json:"requester" db:"requester_id"`
	Status      RequestStatus `json:"status" db:"status"`
	Created     CustomTime    `json:"created" db:"created"`
}

// StatusUpdateResult is the state of an event's moderated requests after an
// admission call.
type StatusUpdateResult struct {
	ConfirmedRequests []*ParticipationRequest `json:"confirmedRequests"`
	RejectedRequests  []*ParticipationRequest `json:"rejectedRequests"`
}
