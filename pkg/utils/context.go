package utils

import (
	"context"
)

type contextKey string

const (
	GuestIDKey contextKey = "guest_id"
	RequestKey contextKey = "request_key"
)

// GetGuestIDFromContext returns the verified subject identifier the
// identity middleware attached. The engine trusts it as-is; token
// verification happens upstream.
func GetGuestIDFromContext(ctx context.Context) (string, bool) {
	guestVal := ctx.Value(GuestIDKey)
	if guestVal == nil {
		return "", false
	}

	guestID, ok := guestVal.(string)
	if !ok || guestID == "" {
		return "", false
	}

	return guestID, true
}

func SetGuestContext(ctx context.Context, guestID string) context.Context {
	return context.WithValue(ctx, GuestIDKey, guestID)
}

// GetRequestKeyFromContext returns the caller-supplied idempotency key for
// the command, when present.
func GetRequestKeyFromContext(ctx context.Context) (string, bool) {
	keyVal := ctx.Value(RequestKey)
	if keyVal == nil {
		return "", false
	}

	key, ok := keyVal.(string)
	return key, ok && key != ""
}

func SetRequestKeyContext(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, RequestKey, key)
}
