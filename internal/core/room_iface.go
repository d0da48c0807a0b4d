package core

import (
	"github.com/dkeye/peercall/internal/domain"
)

// UserDTO is a read-only view for APIs (no transport fields).
type UserDTO struct {
	UserID   domain.ConnID `json:"userId"`
	Username string        `json:"username"`
}

// UserInfo is the REST projection of a registered connection.
type UserInfo struct {
	UserID   domain.ConnID `json:"userId"`
	Username string        `json:"username"`
	Room     domain.RoomID `json:"room"`
}

type RoomInfo struct {
	RoomID    domain.RoomID   `json:"roomId"`
	Name      string          `json:"name"`
	UserCount int             `json:"userCount"`
	Users     []domain.ConnID `json:"users"`
}
