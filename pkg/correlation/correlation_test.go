package correlation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWithID(t *testing.T) {
	t.Parallel()

	ctx := WithID(context.Background(), "corr-1")
	assert.Equal(t, "corr-1", FromContext(ctx))

	assert.Equal(t, ctx, WithID(ctx, ""), "empty id must not shadow existing one")
	assert.Empty(t, FromContext(context.Background()))
}

func TestNewID(t *testing.T) {
	t.Parallel()

	_, err := uuid.Parse(NewID())
	assert.NoError(t, err)
	assert.NotEqual(t, NewID(), NewID())
}
