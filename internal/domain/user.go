// Package domain contains entity without logic, just meta-data
package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const MaxUsernameLen = 64

// ConnID identifies one live client connection. It is assigned at connect time
// and is never reused while the connection is alive.
type ConnID string

func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// Connection is the registered profile of a live connection.
type Connection struct {
	ID          ConnID `json:"userId"`
	DisplayName string `json:"username"`
	Room        RoomID `json:"room"`
}

// NewConnection validates the registration input and applies the default room.
func NewConnection(id ConnID, displayName string, room RoomID) (*Connection, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, fmt.Errorf("username empty: %w", ErrInvalidInput)
	}
	if len(name) > MaxUsernameLen {
		return nil, fmt.Errorf("username too long: %w", ErrInvalidInput)
	}
	if id == "" {
		return nil, fmt.Errorf("connection id empty: %w", ErrInvalidInput)
	}
	return &Connection{ID: id, DisplayName: name, Room: room.OrDefault()}, nil
}
