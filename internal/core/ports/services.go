package ports

import (
	"context"

	"github.com/Akitash/opentogethertube/internal/core/domain"
)

// VideoExtractor resolves URLs and fetches metadata for queueable videos.
// It is the InfoExtractor collaborator named out of scope by spec §1; the
// Room engine only ever talks to it through this port.
type VideoExtractor interface {
	// ResolveURL turns an arbitrary video URL into a (service, id) pair.
	ResolveURL(ctx context.Context, url string) (service, id string, err error)
	// FetchMetadata fills in the remaining Video fields (title, length, ...)
	// for a (service, id) pair already known.
	FetchMetadata(ctx context.Context, service, id string) (domain.Video, error)
}

// UserStore resolves a registered UserID to the cached User info a
// RoomUser carries. It is the account-storage collaborator named out of
// scope by spec §1.
type UserStore interface {
	GetUser(ctx context.Context, id domain.UserID) (domain.User, error)
}
