package entity

import (
	"time"
)

type EventState string

const (
	EventStatePending   EventState = "PENDING"
	EventStatePublished EventState = "PUBLISHED"
	EventStateCanceled  EventState = "CANCELED"
)

func (s EventState) Valid() bool {
	switch s {
	case EventStatePending, EventStatePublished, EventStateCanceled:
		return true
	}
	return false
}

type StateAction string

const (
	StateActionPublish      StateAction = "PUBLISH_EVENT"
	StateActionReject       StateAction = "REJECT_EVENT"
	StateActionSendToReview StateAction = "SEND_TO_REVIEW"
	StateActionCancelReview StateAction = "CANCEL_REVIEW"
)

type ActorRole string

const (
	ActorOwner ActorRole = "OWNER"
	ActorAdmin ActorRole = "ADMIN"
)

// Actor is whoever drives a lifecycle call. ID is only meaningful for owners.
type Actor struct {
	Role ActorRole
	ID   int64
}

func Owner(userID int64) Actor { return Actor{Role: ActorOwner, ID: userID} }
func Admin() Actor              { return Actor{Role: ActorAdmin} }

type Event struct {
	ID                int64       `json:"id" db:"id"`
	InitiatorID       int64       `json:"initiatorId" db:"initiator_id"`
	CategoryID        int64       `json:"categoryId" db:"category_id"`
	LocationID        int64       `json:"locationId" db:"location_id"`
	Title             string      `json:"title" db:"title"`
	Annotation        string      `json:"annotation" db:"annotation"`
	Description       string      `json:"description" db:"description"`
	Paid              bool        `json:"paid" db:"paid"`
	ParticipantLimit  int         `json:"participantLimit" db:"participant_limit"`
	RequestModeration bool        `json:"requestModeration" db:"request_moderation"`
	State             EventState  `json:"state" db:"state"`
	EventDate         CustomTime  `json:"eventDate" db:"event_date"`
	CreatedOn         CustomTime  `json:"createdOn" db:"created_on"`
	PublishedOn       *CustomTime `json:"publishedOn,omitempty" db:"published_on"`
	ConfirmedRequests int         `json:"confirmedRequests" db:"confirmed_requests"`
}

// EventFull is an event enriched with collaborator data for read paths.
type EventFull struct {
	*Event
	Initiator *UserShort `json:"initiator,omitempty"`
	Category  *Category  `json:"category,omitempty"`
	Location  *Location  `json:"location,omitempty"`
	Views     int64      `json:"views"`
	Likes     int64      `json:"likes"`
}

// Apply runs a lifecycle action on behalf of role.
func (e *Event) Apply(role ActorRole, action StateAction, now time.Time) error {
	if e.State == EventStatePublished {
		return ErrEventPublished
	}

	switch role {
	case ActorAdmin:
		if action != StateActionPublish && action != StateActionReject {
			return ErrInvalidStateAction
		}
		if e.State != EventStatePending {
			return ErrEventNotPending
		}
		if action == StateActionPublish {
			published := NewCustomTime(now)
			e.State = EventStatePublished
			e.PublishedOn = &published
		} else {
			e.State = EventStateCanceled
		}
	case ActorOwner:
		switch action {
		case StateActionCancelReview:
			// CANCELED -> CANCELED is accepted and changes nothing.
			e.State = EventStateCanceled
		case StateActionSendToReview:
			e.State = EventStatePending
		default:
			return ErrInvalidStateAction
		}
	default:
		return ErrInvalidStateAction
	}
	return nil
}

// CheckEditable reports whether role may edit fields of the event in its
// current state.
func (e *Event) CheckEditable(role ActorRole) error {
	if e.State == EventStatePublished {
		return ErrEventPublished
	}
	if role == ActorAdmin && e.State != EventStatePending {
		return ErrEventNotPending
	}
	return nil
}

// AutoConfirm reports whether new requests skip moderation.
func (e *Event) AutoConfirm() bool {
	return !e.RequestModeration || e.ParticipantLimit == 0
}

// LimitReached reports whether confirmed participants fill the event.
func (e *Event) LimitReached(confirmed int) bool {
	return e.ParticipantLimit > 0 && confirmed >= e.ParticipantLimit
}

// EventFilter narrows event searches. Zero values mean "no restriction".
type EventFilter struct {
	Text          string
	InitiatorIDs  []int64
	States        []EventState
	CategoryIDs   []int64
	Paid          *bool
	RangeStart    *time.Time
	RangeEnd      *time.Time
	OnlyAvailable bool
	From          int
	Size          int
}

// CapacityDrift is an event whose confirmed aggregate disagrees with its rows.
type CapacityDrift struct {
	EventID   int64 `json:"eventId"`
	Aggregate int   `json:"aggregate"`
	Actual    int   `json:"actual"`
}
