package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
)

func randomCode() domain.RoomCode {
	s := ulid.Make().String()
	return domain.RoomCode(s[len(s)-domain.RoomCodeLen:])
}

func testIdentity(t *testing.T, name string) domain.Identity {
	t.Helper()
	id, err := domain.NewIdentity(name, name+"@example.com")
	require.NoError(t, err)
	return id
}

// runStoreContract checks the behaviour every RoomStore must share.
func runStoreContract(t *testing.T, s core.RoomStore) {
	ctx := context.Background()
	host := testIdentity(t, "alice")
	guest := testIdentity(t, "bob")
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("create and get", func(t *testing.T) {
		code := randomCode()
		room := domain.NewRoom(code, host, now)
		room.AddParticipant(domain.Participant{ConnID: "c1", Identity: host, JoinedAt: now})
		require.NoError(t, s.Create(ctx, room))

		got, err := s.Get(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, code, got.Code)
		assert.Equal(t, host.ID, got.Host.ID)
		assert.Equal(t, host.Name, got.Host.Name)
		assert.True(t, got.AdmissionRequired)
		assert.True(t, got.IsActive)
		require.Len(t, got.Roster, 1)
		assert.Equal(t, domain.ConnID("c1"), got.Roster[0].ConnID)
		assert.Empty(t, got.Waiting)
		assert.Empty(t, got.Messages)
		assert.WithinDuration(t, now, got.CreatedAt, time.Second)
	})

	t.Run("create never overwrites", func(t *testing.T) {
		code := randomCode()
		require.NoError(t, s.Create(ctx, domain.NewRoom(code, host, now)))
		err := s.Create(ctx, domain.NewRoom(code, guest, now))
		require.ErrorIs(t, err, domain.ErrCodeTaken)

		got, err := s.Get(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, host.ID, got.Host.ID)
	})

	t.Run("unknown code", func(t *testing.T) {
		code := randomCode()
		_, err := s.Get(ctx, code)
		require.ErrorIs(t, err, domain.ErrNotFound)

		active := false
		err = s.Update(ctx, code, core.RoomPatch{IsActive: &active})
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("update applies patch fields", func(t *testing.T) {
		code := randomCode()
		require.NoError(t, s.Create(ctx, domain.NewRoom(code, host, now)))

		msg1, err := domain.NewChatMessage("c1", host, "hello", 0, now)
		require.NoError(t, err)
		msg2, err := domain.NewChatMessage("c2", guest, "hi there", 0, now.Add(time.Second))
		require.NoError(t, err)

		require.NoError(t, s.Update(ctx, code, core.RoomPatch{
			Roster:         []domain.Participant{{ConnID: "c1", Identity: host, JoinedAt: now}},
			Waiting:        []domain.WaitingEntry{{ConnID: "c2", Identity: guest, RequestedAt: now}},
			AppendMessages: []domain.ChatMessage{msg1},
		}))
		require.NoError(t, s.Update(ctx, code, core.RoomPatch{
			AppendMessages: []domain.ChatMessage{msg2},
		}))

		got, err := s.Get(ctx, code)
		require.NoError(t, err)
		require.Len(t, got.Roster, 1)
		require.Len(t, got.Waiting, 1)
		assert.Equal(t, domain.ConnID("c2"), got.Waiting[0].ConnID)
		assert.Equal(t, guest.ID, got.Waiting[0].Identity.ID)
		require.Len(t, got.Messages, 2)
		assert.Equal(t, msg1.ID, got.Messages[0].ID)
		assert.Equal(t, "hello", got.Messages[0].Text)
		assert.Equal(t, msg2.ID, got.Messages[1].ID)
		assert.Equal(t, guest.Name, got.Messages[1].Sender.Name)

		active := false
		require.NoError(t, s.Update(ctx, code, core.RoomPatch{
			Roster:   []domain.Participant{},
			Waiting:  []domain.WaitingEntry{},
			IsActive: &active,
		}))
		got, err = s.Get(ctx, code)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
		assert.Empty(t, got.Roster)
		assert.Empty(t, got.Waiting)
		assert.Len(t, got.Messages, 2)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	code := randomCode()
	room := domain.NewRoom(code, testIdentity(t, "alice"), time.Now())
	require.NoError(t, s.Create(ctx, room))

	got, err := s.Get(ctx, code)
	require.NoError(t, err)
	got.Roster = append(got.Roster, domain.Participant{ConnID: "intruder"})

	again, err := s.Get(ctx, code)
	require.NoError(t, err)
	assert.Empty(t, again.Roster)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "rooms.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	runStoreContract(t, s)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rooms.db")
	code := randomCode()

	s, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, domain.NewRoom(code, testIdentity(t, "alice"), time.Now())))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	got, err := s.Get(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Host.Name)
}

func TestRedisStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping test")
	}
	prefix := "hangout-test-" + ulid.Make().String() + ":"
	t.Cleanup(func() {
		keys, _ := client.Keys(context.Background(), prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(context.Background(), keys...)
		}
		client.Close()
	})

	runStoreContract(t, NewRedisStoreWithClient(client, prefix))
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("HANGOUT_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("HANGOUT_TEST_POSTGRES_URL not set, skipping test")
	}
	s, err := NewPostgresStore(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	runStoreContract(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Options{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Options{Driver: DriverPostgres})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Driver: "mongo"})
	assert.Error(t, err)
}
