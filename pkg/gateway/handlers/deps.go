package handlers

import (
	"context"

	"github.com/pathwise-app/conversation-service/pkg/gateway/auth"
	"github.com/pathwise-app/conversation-service/pkg/gateway/profile"
	"github.com/pathwise-app/conversation-service/pkg/gateway/relay"
)

// IdentityVerifier turns a raw bearer token into a verified identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, raw string) (auth.Identity, error)
}

// ProfileStore fetches the profile record for a verified user.
type ProfileStore interface {
	Fetch(ctx context.Context, userID string) (profile.Profile, error)
}

// UpstreamDialer opens a live socket to the conversational agent.
type UpstreamDialer interface {
	Dial(ctx context.Context) (relay.Conn, error)
}
