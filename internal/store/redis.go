package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
)

// RedisStore keeps each room in a hash and its chat log in a list.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client, prefix: "hangout:"}, nil
}

// NewRedisStoreWithClient wraps an existing client; keys are namespaced by prefix.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// roomKey returns the key for a room's hash.
func (s *RedisStore) roomKey(code domain.RoomCode) string {
	return fmt.Sprintf("%sroom:%s", s.prefix, code)
}

// roomMessagesKey returns the key for a room's message list.
func (s *RedisStore) roomMessagesKey(code domain.RoomCode) string {
	return fmt.Sprintf("%sroom:%s:messages", s.prefix, code)
}

func (s *RedisStore) Create(ctx context.Context, room domain.Room) error {
	key := s.roomKey(room.Code)

	ok, err := s.client.HSetNX(ctx, key, "code", string(room.Code)).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCodeTaken
	}

	host, err := json.Marshal(room.Host)
	if err != nil {
		return err
	}
	roster, waiting, err := encodeMembership(room.Roster, room.Waiting)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, key,
		"host", string(host),
		"admission_required", strconv.FormatBool(room.AdmissionRequired),
		"is_active", strconv.FormatBool(room.IsActive),
		"roster", roster,
		"waiting", waiting,
		"created_at", room.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at", room.UpdatedAt.UTC().Format(time.RFC3339Nano),
	).Err()
}

func (s *RedisStore) Get(ctx context.Context, code domain.RoomCode) (domain.Room, error) {
	fields, err := s.client.HGetAll(ctx, s.roomKey(code)).Result()
	if err != nil {
		return domain.Room{}, err
	}
	if len(fields) == 0 || fields["host"] == "" {
		return domain.Room{}, domain.ErrNotFound
	}

	room := domain.Room{Code: code}
	if err := json.Unmarshal([]byte(fields["host"]), &room.Host); err != nil {
		return domain.Room{}, err
	}
	room.AdmissionRequired, _ = strconv.ParseBool(fields["admission_required"])
	room.IsActive, _ = strconv.ParseBool(fields["is_active"])
	room.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	room.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err := decodeMembership(fields["roster"], fields["waiting"], &room); err != nil {
		return domain.Room{}, err
	}

	raw, err := s.client.LRange(ctx, s.roomMessagesKey(code), 0, -1).Result()
	if err != nil {
		return domain.Room{}, err
	}
	room.Messages = make([]domain.ChatMessage, 0, len(raw))
	for _, r := range raw {
		var m domain.ChatMessage
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return domain.Room{}, err
		}
		room.Messages = append(room.Messages, m)
	}
	return room, nil
}

func (s *RedisStore) Update(ctx context.Context, code domain.RoomCode, p core.RoomPatch) error {
	key := s.roomKey(code)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	values := []any{"updated_at", time.Now().UTC().Format(time.RFC3339Nano)}
	if p.Roster != nil {
		b, err := json.Marshal(p.Roster)
		if err != nil {
			return err
		}
		values = append(values, "roster", string(b))
	}
	if p.Waiting != nil {
		b, err := json.Marshal(p.Waiting)
		if err != nil {
			return err
		}
		values = append(values, "waiting", string(b))
	}
	if p.IsActive != nil {
		values = append(values, "is_active", strconv.FormatBool(*p.IsActive))
	}

	msgs := make([]any, 0, len(p.AppendMessages))
	for _, m := range p.AppendMessages {
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		msgs = append(msgs, string(b))
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values...)
		if len(msgs) > 0 {
			pipe.RPush(ctx, s.roomMessagesKey(code), msgs...)
		}
		return nil
	})
	return err
}
