package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/hangout.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/hangout.db"
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		code TEXT PRIMARY KEY,
		host_id TEXT NOT NULL,
		host_name TEXT NOT NULL,
		host_email TEXT DEFAULT '',
		host_picture TEXT DEFAULT '',
		admission_required INTEGER NOT NULL DEFAULT 1,
		is_active INTEGER NOT NULL DEFAULT 1,
		roster TEXT NOT NULL DEFAULT '[]',
		waiting TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		room_code TEXT NOT NULL REFERENCES rooms(code),
		sender_conn TEXT NOT NULL,
		sender TEXT NOT NULL,
		text TEXT NOT NULL,
		sent_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_code, seq);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Create(ctx context.Context, room domain.Room) error {
	roster, waiting, err := encodeMembership(room.Roster, room.Waiting)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (code, host_id, host_name, host_email, host_picture,
			admission_required, is_active, roster, waiting, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO NOTHING`,
		string(room.Code), string(room.Host.ID), room.Host.Name, room.Host.Email, room.Host.Picture,
		room.AdmissionRequired, room.IsActive, roster, waiting, room.CreatedAt.UTC(), room.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrCodeTaken
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, code domain.RoomCode) (domain.Room, error) {
	var (
		room             domain.Room
		roster, waiting  string
		hostID           string
		admission, alive bool
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT code, host_id, host_name, host_email, host_picture,
			admission_required, is_active, roster, waiting, created_at, updated_at
		FROM rooms WHERE code = ?`, string(code),
	).Scan(&room.Code, &hostID, &room.Host.Name, &room.Host.Email, &room.Host.Picture,
		&admission, &alive, &roster, &waiting, &room.CreatedAt, &room.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Room{}, err
	}
	room.Host.ID = domain.UserID(hostID)
	room.AdmissionRequired = admission
	room.IsActive = alive
	if err := decodeMembership(roster, waiting, &room); err != nil {
		return domain.Room{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_conn, sender, text, sent_at
		FROM messages WHERE room_code = ? ORDER BY seq`, string(code))
	if err != nil {
		return domain.Room{}, err
	}
	defer rows.Close()

	room.Messages = []domain.ChatMessage{}
	for rows.Next() {
		var (
			m      domain.ChatMessage
			sender string
		)
		if err := rows.Scan(&m.ID, &m.SenderConn, &sender, &m.Text, &m.SentAt); err != nil {
			return domain.Room{}, err
		}
		if err := json.Unmarshal([]byte(sender), &m.Sender); err != nil {
			return domain.Room{}, err
		}
		room.Messages = append(room.Messages, m)
	}
	return room, rows.Err()
}

func (s *SQLiteStore) Update(ctx context.Context, code domain.RoomCode, p core.RoomPatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if p.Roster != nil {
		b, err := json.Marshal(p.Roster)
		if err != nil {
			return err
		}
		sets = append(sets, "roster = ?")
		args = append(args, string(b))
	}
	if p.Waiting != nil {
		b, err := json.Marshal(p.Waiting)
		if err != nil {
			return err
		}
		sets = append(sets, "waiting = ?")
		args = append(args, string(b))
	}
	if p.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *p.IsActive)
	}
	args = append(args, string(code))

	res, err := tx.ExecContext(ctx, "UPDATE rooms SET "+strings.Join(sets, ", ")+" WHERE code = ?", args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	for _, m := range p.AppendMessages {
		sender, err := json.Marshal(m.Sender)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, room_code, sender_conn, sender, text, sent_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, string(code), string(m.SenderConn), string(sender), m.Text, m.SentAt.UTC(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func encodeMembership(roster []domain.Participant, waiting []domain.WaitingEntry) (string, string, error) {
	if roster == nil {
		roster = []domain.Participant{}
	}
	if waiting == nil {
		waiting = []domain.WaitingEntry{}
	}
	r, err := json.Marshal(roster)
	if err != nil {
		return "", "", err
	}
	w, err := json.Marshal(waiting)
	if err != nil {
		return "", "", err
	}
	return string(r), string(w), nil
}

func decodeMembership(roster, waiting string, room *domain.Room) error {
	if err := json.Unmarshal([]byte(roster), &room.Roster); err != nil {
		return err
	}
	return json.Unmarshal([]byte(waiting), &room.Waiting)
}
