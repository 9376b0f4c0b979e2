package ports

import (
	"context"

	"github.com/Akitash/opentogethertube/internal/core/domain"
)

// RoomHandle is the capability a RoomDirectory hands back for a room:
// just enough surface for the gateway to submit requests and read the
// last snapshot, without the gateway needing to import the services
// package (breaking the ClientManager<->RoomManager cycle called out in
// spec DESIGN NOTES).
type RoomHandle interface {
	Name() domain.RoomName
	// Submit enqueues req for serialized processing by this room's
	// single-goroutine engine and waits for it to complete.
	Submit(ctx context.Context, req domain.Request) error
}

// RoomDirectory is the RoomManager collaborator contract from spec §4.D:
// lookup/creation of Room instances on this node. GetRoom is safe to call
// concurrently and returns the same instance for the same name within one
// process.
type RoomDirectory interface {
	GetRoom(ctx context.Context, name domain.RoomName) (RoomHandle, error)
}
