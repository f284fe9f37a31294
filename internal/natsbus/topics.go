package natsbus

import (
	"fmt"
	"time"
)

// Topic patterns for domain events. Every event lives under "events." so a
// single wildcard subscription can fan them out to websocket clients.

func TopicEventsFusion(userID int64) string {
	return fmt.Sprintf("events.fusion.%d", userID)
}

func TopicEventsFavorite(userID int64) string {
	return fmt.Sprintf("events.favorite.%d", userID)
}

const TopicEventsAll = "events.>"

const (
	EventFusionCreated   = "fusion_created"
	EventFavoriteAdded   = "favorite_added"
	EventFavoriteRemoved = "favorite_removed"
)

// Event is the JSON envelope published on event topics.
type Event struct {
	Type      string    `json:"type"`
	UserID    int64     `json:"user_id"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEvent(typ string, userID int64, data any) Event {
	return Event{Type: typ, UserID: userID, Data: data, Timestamp: time.Now().UTC()}
}
