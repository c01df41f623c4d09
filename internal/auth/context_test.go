// ABOUTME: Unit tests for authentication context functions
// ABOUTME: Tests Session propagation helpers

package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext_Empty(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}

func TestWithSession_RoundTrip(t *testing.T) {
	s := &Session{ID: "abc", Algorithm: "sha256", Created: true}
	ctx := WithSession(context.Background(), s)

	assert.Same(t, s, FromContext(ctx))
	assert.Same(t, s, MustFromContext(ctx))
}

func TestMustFromContext_Panics(t *testing.T) {
	assert.Panics(t, func() { MustFromContext(context.Background()) })
}
