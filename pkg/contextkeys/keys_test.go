package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValues(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, Auth(ctx))
	assert.Nil(t, Logger(ctx))
	assert.Empty(t, GetRequestID(ctx))
	_, ok := GetUserID(ctx)
	assert.False(t, ok)

	ctx = WithAuth(ctx, "auth")
	ctx = WithLogger(ctx, "logger")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUserID(ctx, 7)

	assert.Equal(t, "auth", Auth(ctx))
	assert.Equal(t, "logger", Logger(ctx))
	assert.Equal(t, "req-1", GetRequestID(ctx))
	userID, ok := GetUserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(7), userID)
}

func TestKeysDoNotCollideWithStrings(t *testing.T) {
	ctx := context.WithValue(context.Background(), "request_id", "spoofed") //nolint:staticcheck
	assert.Empty(t, GetRequestID(ctx))
}
