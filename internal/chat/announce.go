package chat

import (
	"context"
	"fmt"

	"github.com/shivamdeswal5/weconnect/internal/remote"
)

// AnnouncePresence marks userID online and arms the store-side disconnect
// write that flips the flag back to false when the connection drops. The
// disconnect write is armed before the flag is raised, so a crash between the
// two never leaves a phantom online peer. The returned retract lowers the
// flag eagerly on clean shutdown.
func AnnouncePresence(ctx context.Context, stream remote.Stream, userID string) (retract func(context.Context) error, err error) {
	path := remote.OnlinePath(userID)
	if err := stream.OnDisconnectWrite(ctx, path, false); err != nil {
		return nil, fmt.Errorf("arm disconnect write: %w", err)
	}
	if err := stream.Write(ctx, path, true); err != nil {
		return nil, fmt.Errorf("announce presence: %w", err)
	}
	return func(ctx context.Context) error {
		return stream.Write(ctx, path, false)
	}, nil
}
