package storage

import (
	"context"

	"github.com/mcoot/hotpotato/internal/model"
)

// Storage defines the interface for the room store
type Storage interface {
	// Room operations
	SaveRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error)
	DeleteRoom(ctx context.Context, code model.RoomCode) error
	RoomExists(ctx context.Context, code model.RoomCode) (bool, error)

	// ListRooms returns every live room ordered by code
	ListRooms(ctx context.Context) ([]*model.Room, error)
}
