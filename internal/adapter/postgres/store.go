package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/redmag-edu/mentoria/internal/domain"
	"github.com/redmag-edu/mentoria/internal/domain/chat"
	"github.com/redmag-edu/mentoria/internal/domain/profile"
)

// Store implements store.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Conversations ---

func (s *Store) GetActiveConversation(ctx context.Context, userID string) (*chat.Conversation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, status, message_count, created_at, updated_at
		 FROM conversations WHERE user_id = $1 AND status IN ('active', 'rollover_pending')`,
		userID)

	c, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get active conversation for %s: %w", userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get active conversation for %s: %w", userID, err)
	}
	return &c, nil
}

func (s *Store) CreateConversation(ctx context.Context, userID string) (*chat.Conversation, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (user_id) VALUES ($1)
		 RETURNING id, user_id, status, message_count, created_at, updated_at`,
		userID)

	c, err := scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &c, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, status, message_count, created_at, updated_at
		 FROM conversations WHERE id = $1`, id)

	c, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get conversation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return &c, nil
}

func (s *Store) UpdateConversationStatus(ctx context.Context, id string, status chat.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("update conversation status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update conversation status %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) LatestConversationID(ctx context.Context, userID string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM conversations WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`,
		userID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("latest conversation for %s: %w", userID, domain.ErrNotFound)
		}
		return "", fmt.Errorf("latest conversation for %s: %w", userID, err)
	}
	return id, nil
}

// --- Turns ---

// AppendTurn inserts a turn with the next sequence number, holding a row
// lock on the conversation so concurrent writers cannot collide on seq.
// User turns also increment the conversation's message count.
func (s *Store) AppendTurn(ctx context.Context, t *chat.Turn) (*chat.Turn, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM conversations WHERE id = $1 FOR UPDATE`,
		t.ConversationID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("append turn to %s: %w", t.ConversationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("lock conversation %s: %w", t.ConversationID, err)
	}
	if status == string(chat.StatusClosed) {
		return nil, fmt.Errorf("append turn to closed conversation %s: %w", t.ConversationID, domain.ErrConflict)
	}

	var created chat.Turn
	err = tx.QueryRow(ctx,
		`INSERT INTO turns (conversation_id, seq, role, kind, content, payload)
		 SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5 FROM turns WHERE conversation_id = $1
		 RETURNING id, conversation_id, seq, role, kind, content, payload, created_at`,
		t.ConversationID, string(t.Role), string(t.Kind), t.Content, t.Payload,
	).Scan(&created.ID, &created.ConversationID, &created.Seq, &created.Role,
		&created.Kind, &created.Content, &created.Payload, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert turn: %w", err)
	}

	if t.Role == chat.RoleUser {
		if _, err := tx.Exec(ctx,
			`UPDATE conversations SET message_count = message_count + 1, updated_at = now() WHERE id = $1`,
			t.ConversationID); err != nil {
			return nil, fmt.Errorf("bump message count: %w", err)
		}
	} else {
		if _, err := tx.Exec(ctx,
			`UPDATE conversations SET updated_at = now() WHERE id = $1`,
			t.ConversationID); err != nil {
			return nil, fmt.Errorf("touch conversation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit turn: %w", err)
	}
	return &created, nil
}

// RecentTurns returns the last n turns in ascending seq order.
func (s *Store) RecentTurns(ctx context.Context, conversationID string, n int) ([]chat.Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, seq, role, kind, content, payload, created_at
		 FROM (
		   SELECT id, conversation_id, seq, role, kind, content, payload, created_at
		   FROM turns WHERE conversation_id = $1 ORDER BY seq DESC LIMIT $2
		 ) recent ORDER BY seq ASC`,
		conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	return collectTurns(rows)
}

// TurnPage returns one page of turns in ascending seq order plus the total
// turn count. Pages are 1-based.
func (s *Store) TurnPage(ctx context.Context, conversationID string, page, size int) ([]chat.Turn, int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM turns WHERE conversation_id = $1`, conversationID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count turns: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, seq, role, kind, content, payload, created_at
		 FROM turns WHERE conversation_id = $1 ORDER BY seq ASC LIMIT $2 OFFSET $3`,
		conversationID, size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	turns, err := collectTurns(rows)
	if err != nil {
		return nil, 0, err
	}
	return turns, total, nil
}

// --- Profiles ---

func (s *Store) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	var p profile.Profile
	var fieldsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, fields, created_at, updated_at FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &fieldsJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get profile %s: %w", userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}
	if fieldsJSON != nil {
		if err := json.Unmarshal(fieldsJSON, &p.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal profile fields: %w", err)
		}
	}
	return &p, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p *profile.Profile) error {
	fieldsJSON, err := json.Marshal(p.Fields)
	if err != nil {
		return fmt.Errorf("marshal profile fields: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO profiles (user_id, fields) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()
		 RETURNING created_at, updated_at`,
		p.UserID, fieldsJSON,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.UserID, err)
	}
	return nil
}

// --- Scanners ---

type scannable interface {
	Scan(dest ...any) error
}

func scanConversation(row scannable) (chat.Conversation, error) {
	var c chat.Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.Status, &c.MessageCount, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func collectTurns(rows pgx.Rows) ([]chat.Turn, error) {
	var turns []chat.Turn
	for rows.Next() {
		var t chat.Turn
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Seq, &t.Role, &t.Kind,
			&t.Content, &t.Payload, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
