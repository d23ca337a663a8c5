package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omkar-Kubal/voice-cbt/core/conversations"
)

func TestNewStoreRejectsUnknownDriver(t *testing.T) {
	_, err := NewStore(DriverType("cassandra"))
	require.ErrorIs(t, err, ErrInvalidDriver)
}

func TestNewStoreRequiresRedisClient(t *testing.T) {
	_, err := NewStore(DriverRedis)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s, err := NewStore(DriverMemory)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	log, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, log, "a fresh user should have an empty log")

	first := conversations.NewUserMessage("hello")
	second := conversations.NewSystemMessage("hi, how are you feeling?", "neutral")
	require.NoError(t, s.Append(ctx, "alice", first))
	require.NoError(t, s.Append(ctx, "alice", second))

	log, err = s.Load(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "hello", log[0].Text)
	assert.Equal(t, conversations.SpeakerSystem, log[1].Speaker)
	assert.Equal(t, "neutral", log[1].EmotionTag)
}

func TestMemoryStoreIsolatesUsers(t *testing.T) {
	s, err := NewStore(DriverMemory)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "alice", conversations.NewUserMessage("mine")))

	log, err := s.Load(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestMemoryStoreClearRemovesOnlyThatUser(t *testing.T) {
	s, err := NewStore(DriverMemory)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "alice", conversations.NewUserMessage("one")))
	require.NoError(t, s.Append(ctx, "bob", conversations.NewUserMessage("two")))

	require.NoError(t, s.Clear(ctx, "alice"))

	aliceLog, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, aliceLog)

	bobLog, err := s.Load(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, bobLog, 1)
}

func TestMemoryStoreLoadReturnsCopy(t *testing.T) {
	s, err := NewStore(DriverMemory)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "alice", conversations.NewUserMessage("original")))

	log, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	log[0].Text = "mutated"

	reloaded, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "original", reloaded[0].Text, "callers must not be able to mutate stored state")
}
