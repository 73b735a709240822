package models

import (
	"context"
	"time"
)

// EventKind identifies the type of an inbound chat event.
type EventKind string

const (
	EventText   EventKind = "text"
	EventPhoto  EventKind = "photo"
	EventButton EventKind = "button"
)

// PhotoFetcher lazily downloads the image attached to a photo event.
type PhotoFetcher func(ctx context.Context) ([]byte, error)

// Event is an inbound message delivered by a chat transport with a stable per-user identity.
type Event struct {
	Kind      EventKind `json:"kind"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`

	// Text holds the message body for text events.
	Text string `json:"text,omitempty"`

	// Caption and FetchPhoto are set for photo events.
	Caption    string       `json:"caption,omitempty"`
	FetchPhoto PhotoFetcher `json:"-"`

	// CallbackID and Payload are set for button events. CallbackID is empty
	// for transports without native callbacks.
	CallbackID string `json:"callback_id,omitempty"`
	Payload    string `json:"payload,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// Button is a single option of an outbound menu.
type Button struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

// Menu is a set of button rows. Each inner slice is rendered as one row.
type Menu [][]Button

// Buttons flattens the menu in display order.
func (m Menu) Buttons() []Button {
	var out []Button
	for _, row := range m {
		out = append(out, row...)
	}
	return out
}

// Column builds a menu with one button per row.
func Column(buttons ...Button) Menu {
	m := make(Menu, 0, len(buttons))
	for _, b := range buttons {
		m = append(m, []Button{b})
	}
	return m
}

// Domain event types published when diary data changes.
const (
	DomainFoodLogged        = "food.logged"
	DomainExerciseLogged    = "exercise.logged"
	DomainWeightLogged      = "weight.logged"
	DomainProfileConfigured = "profile.configured"
)

// DomainEvent describes a persisted change for downstream consumers.
type DomainEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}
