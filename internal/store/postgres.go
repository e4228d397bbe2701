package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store and makes sure the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS rooms (
		code TEXT PRIMARY KEY,
		host_id TEXT NOT NULL,
		host_name TEXT NOT NULL,
		host_email TEXT NOT NULL DEFAULT '',
		host_picture TEXT NOT NULL DEFAULT '',
		admission_required BOOLEAN NOT NULL DEFAULT TRUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		roster JSONB NOT NULL DEFAULT '[]',
		waiting JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT UNIQUE NOT NULL,
		room_code TEXT NOT NULL REFERENCES rooms(code),
		sender_conn TEXT NOT NULL,
		sender JSONB NOT NULL,
		text TEXT NOT NULL,
		sent_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_code, seq);
	`)
	return err
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Create(ctx context.Context, room domain.Room) error {
	roster, waiting, err := encodeMembership(room.Roster, room.Waiting)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (code, host_id, host_name, host_email, host_picture,
			admission_required, is_active, roster, waiting, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb, $10, $11)
		ON CONFLICT (code) DO NOTHING`,
		string(room.Code), string(room.Host.ID), room.Host.Name, room.Host.Email, room.Host.Picture,
		room.AdmissionRequired, room.IsActive, roster, waiting, room.CreatedAt, room.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCodeTaken
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, code domain.RoomCode) (domain.Room, error) {
	var (
		room             domain.Room
		roomCode, hostID string
		roster, waiting  []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT code, host_id, host_name, host_email, host_picture,
			admission_required, is_active, roster, waiting, created_at, updated_at
		FROM rooms WHERE code = $1`, string(code),
	).Scan(&roomCode, &hostID, &room.Host.Name, &room.Host.Email, &room.Host.Picture,
		&room.AdmissionRequired, &room.IsActive, &roster, &waiting, &room.CreatedAt, &room.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Room{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Room{}, err
	}
	room.Code = domain.RoomCode(roomCode)
	room.Host.ID = domain.UserID(hostID)
	if err := decodeMembership(string(roster), string(waiting), &room); err != nil {
		return domain.Room{}, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_conn, sender, text, sent_at
		FROM messages WHERE room_code = $1 ORDER BY seq`, string(code))
	if err != nil {
		return domain.Room{}, err
	}
	defer rows.Close()

	room.Messages = []domain.ChatMessage{}
	for rows.Next() {
		var (
			m          domain.ChatMessage
			senderConn string
			sender     []byte
		)
		if err := rows.Scan(&m.ID, &senderConn, &sender, &m.Text, &m.SentAt); err != nil {
			return domain.Room{}, err
		}
		m.SenderConn = domain.ConnID(senderConn)
		if err := json.Unmarshal(sender, &m.Sender); err != nil {
			return domain.Room{}, err
		}
		room.Messages = append(room.Messages, m)
	}
	return room, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, code domain.RoomCode, p core.RoomPatch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	sets := []string{"updated_at = $1"}
	args := []any{time.Now()}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if p.Roster != nil {
		b, err := json.Marshal(p.Roster)
		if err != nil {
			return err
		}
		sets = append(sets, "roster = "+arg(string(b))+"::jsonb")
	}
	if p.Waiting != nil {
		b, err := json.Marshal(p.Waiting)
		if err != nil {
			return err
		}
		sets = append(sets, "waiting = "+arg(string(b))+"::jsonb")
	}
	if p.IsActive != nil {
		sets = append(sets, "is_active = "+arg(*p.IsActive))
	}
	where := arg(string(code))

	tag, err := tx.Exec(ctx, "UPDATE rooms SET "+strings.Join(sets, ", ")+" WHERE code = "+where, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if len(p.AppendMessages) > 0 {
		batch := &pgx.Batch{}
		for _, m := range p.AppendMessages {
			sender, err := json.Marshal(m.Sender)
			if err != nil {
				return err
			}
			batch.Queue(`
				INSERT INTO messages (id, room_code, sender_conn, sender, text, sent_at)
				VALUES ($1, $2, $3, $4::jsonb, $5, $6)`,
				m.ID, string(code), string(m.SenderConn), string(sender), m.Text, m.SentAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
