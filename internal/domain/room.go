package domain

import "strings"

// DefaultRoom is used when a registration names no room.
const DefaultRoom RoomID = "default"

type RoomID string

func (r RoomID) OrDefault() RoomID {
	if strings.TrimSpace(string(r)) == "" {
		return DefaultRoom
	}
	return r
}
