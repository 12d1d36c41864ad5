package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestScrub(t *testing.T) {
	m := Model{ID: uuid.New(), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.False(t, m.IsZero())

	m.Scrub()
	require.True(t, m.IsZero())
	require.Equal(t, Model{}, m)
}
