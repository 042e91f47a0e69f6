package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bdobrica/kioku/internal/kioku/llm"
)

// Store persists the three memory tiers of a conversation. Every mutating
// operation writes to the database first and only then updates the
// in-memory Conversation, so a failed write leaves the conversation as it was.
type Store interface {
	// Load rebuilds a conversation from its persisted rows. An unknown ID
	// yields an empty conversation.
	Load(ctx context.Context, conversationID string) (*Conversation, error)
	// ConversationIDs lists every conversation with persisted state.
	ConversationIDs(ctx context.Context) ([]string, error)

	Append(ctx context.Context, conv *Conversation, msg *Message) error
	ReplaceWindow(ctx context.Context, conv *Conversation, msgs []*Message) error

	Summary(conv *Conversation) string
	SetSummary(ctx context.Context, conv *Conversation, text string) error
	// ReplaceWindowAndSummary replaces both in a single transaction.
	ReplaceWindowAndSummary(ctx context.Context, conv *Conversation, msgs []*Message, summary string) error

	// AppendArchival records a fact and extends the similarity index in the
	// same transaction. It returns the new entry ID.
	AppendArchival(ctx context.Context, conv *Conversation, text string, embedding []float32) (int64, error)
	// NearestArchival returns up to k entries by ascending L2 distance to
	// query. Empty index or mismatched dimension yields nothing.
	NearestArchival(conv *Conversation, query []float32, k int) []ArchivalEntry
}

// SQLiteStore implements Store on the Kioku SQLite schema. All rows are
// partitioned by conversation_id.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a store backed by db. The caller must have applied
// the store migrations. If logger is nil, the default slog logger is used.
func NewSQLiteStore(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: db, logger: logger, now: time.Now}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Load rebuilds a conversation from its persisted rows.
func (s *SQLiteStore) Load(ctx context.Context, conversationID string) (*Conversation, error) {
	conv := NewConversation(conversationID)

	rows, err := s.db.QueryContext(ctx, `
		SELECT sender, content, created_at, tier, addressed
		FROM messages
		WHERE conversation_id = ?
		ORDER BY id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("memory store: query messages: %w", err)
	}
	for rows.Next() {
		var sender, content, createdAt, tier string
		var addressed bool
		if err := rows.Scan(&sender, &content, &createdAt, &tier, &addressed); err != nil {
			rows.Close()
			return nil, fmt.Errorf("memory store: scan message: %w", err)
		}
		m := NewMessage(sender, content, parseTime(createdAt))
		m.Tier = llm.ParseTier(tier)
		m.Addressed = addressed
		conv.messages = append(conv.messages, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("memory store: iterate messages: %w", err)
	}
	rows.Close()

	err = s.db.QueryRowContext(ctx,
		`SELECT summary FROM active_memory WHERE conversation_id = ?`, conversationID,
	).Scan(&conv.summary)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("memory store: query summary: %w", err)
	}

	if err := s.loadArchive(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *SQLiteStore) loadArchive(ctx context.Context, conv *Conversation) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, created_at, embedding
		FROM archival_memory
		WHERE conversation_id = ?
		ORDER BY id`, conv.ID)
	if err != nil {
		return fmt.Errorf("memory store: query archival: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e ArchivalEntry
		var createdAt string
		var blob []byte
		if err := rows.Scan(&e.ID, &e.Content, &createdAt, &blob); err != nil {
			return fmt.Errorf("memory store: scan archival: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		vec, err := DecodeVector(blob)
		if err != nil {
			return fmt.Errorf("memory store: archival %d: %w", e.ID, err)
		}
		e.Embedding = vec
		conv.archive = append(conv.archive, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("memory store: iterate archival: %w", err)
	}

	var blob []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT blob FROM archival_index WHERE conversation_id = ?`, conv.ID,
	).Scan(&blob)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("memory store: query index: %w", err)
	}

	idx := &FlatIndex{}
	if len(blob) > 0 {
		if err := idx.UnmarshalBinary(blob); err != nil {
			s.logger.Warn("memory store: discarding unreadable index", "conversation_id", conv.ID, "err", err)
			idx = &FlatIndex{}
		}
	}
	if idx.Len() != len(conv.archive) {
		s.logger.Warn("memory store: rebuilding index from archival rows",
			"conversation_id", conv.ID, "index", idx.Len(), "rows", len(conv.archive))
		idx = &FlatIndex{}
		for _, e := range conv.archive {
			if err := idx.Add(e.Embedding); err != nil {
				return fmt.Errorf("memory store: rebuild index: %w", err)
			}
		}
	}
	conv.index = idx
	return nil
}

// ConversationIDs lists every conversation with messages or a summary.
func (s *SQLiteStore) ConversationIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id FROM messages
		UNION
		SELECT conversation_id FROM active_memory
		UNION
		SELECT conversation_id FROM archival_memory
		ORDER BY conversation_id`)
	if err != nil {
		return nil, fmt.Errorf("memory store: list conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("memory store: scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func insertMessage(ctx context.Context, tx *sql.Tx, convID string, m *Message) error {
	tier := m.Tier
	if tier == "" {
		tier = llm.TierStandard
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender, content, created_at, tier, addressed)
		VALUES (?, ?, ?, ?, ?, ?)`,
		convID, m.Sender, m.Content, formatTime(m.CreatedAt), string(tier), m.Addressed,
	)
	return err
}

// Append persists msg and adds it to the end of the window.
func (s *SQLiteStore) Append(ctx context.Context, conv *Conversation, msg *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory store: begin append: %w", err)
	}
	defer tx.Rollback()

	if err := insertMessage(ctx, tx, conv.ID, msg); err != nil {
		return fmt.Errorf("memory store: insert message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("memory store: commit append: %w", err)
	}
	conv.messages = append(conv.messages, msg)
	return nil
}

func replaceMessages(ctx context.Context, tx *sql.Tx, convID string, msgs []*Message) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, convID); err != nil {
		return fmt.Errorf("memory store: clear window: %w", err)
	}
	for _, m := range msgs {
		if err := insertMessage(ctx, tx, convID, m); err != nil {
			return fmt.Errorf("memory store: insert message: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) upsertSummary(ctx context.Context, tx *sql.Tx, convID, summary string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO active_memory (conversation_id, summary, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET summary = excluded.summary, updated_at = excluded.updated_at`,
		convID, summary, formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("memory store: upsert summary: %w", err)
	}
	return nil
}

// ReplaceWindow replaces the whole live window with msgs.
func (s *SQLiteStore) ReplaceWindow(ctx context.Context, conv *Conversation, msgs []*Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory store: begin replace: %w", err)
	}
	defer tx.Rollback()

	if err := replaceMessages(ctx, tx, conv.ID, msgs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("memory store: commit replace: %w", err)
	}
	conv.messages = append([]*Message(nil), msgs...)
	return nil
}

// Summary returns the active-memory summary.
func (s *SQLiteStore) Summary(conv *Conversation) string {
	return conv.summary
}

// SetSummary replaces the active-memory summary.
func (s *SQLiteStore) SetSummary(ctx context.Context, conv *Conversation, text string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory store: begin summary: %w", err)
	}
	defer tx.Rollback()

	if err := s.upsertSummary(ctx, tx, conv.ID, text); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("memory store: commit summary: %w", err)
	}
	conv.summary = text
	return nil
}

// ReplaceWindowAndSummary replaces the window and the summary atomically.
func (s *SQLiteStore) ReplaceWindowAndSummary(ctx context.Context, conv *Conversation, msgs []*Message, summary string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory store: begin compaction: %w", err)
	}
	defer tx.Rollback()

	if err := replaceMessages(ctx, tx, conv.ID, msgs); err != nil {
		return err
	}
	if err := s.upsertSummary(ctx, tx, conv.ID, summary); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("memory store: commit compaction: %w", err)
	}
	conv.messages = append([]*Message(nil), msgs...)
	conv.summary = summary
	return nil
}

// AppendArchival records text with its embedding.
func (s *SQLiteStore) AppendArchival(ctx context.Context, conv *Conversation, text string, embedding []float32) (int64, error) {
	blob, err := EncodeVector(embedding)
	if err != nil {
		return 0, fmt.Errorf("memory store: %w", err)
	}
	idx := conv.index.Clone()
	if err := idx.Add(embedding); err != nil {
		return 0, fmt.Errorf("memory store: %w", err)
	}
	idxBlob, err := idx.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("memory store: encode index: %w", err)
	}

	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("memory store: begin archival: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO archival_memory (conversation_id, content, created_at, embedding)
		VALUES (?, ?, ?, ?)`,
		conv.ID, text, formatTime(now), blob,
	)
	if err != nil {
		return 0, fmt.Errorf("memory store: insert archival: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("memory store: archival id: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO archival_index (conversation_id, entries, blob, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			entries = excluded.entries, blob = excluded.blob, updated_at = excluded.updated_at`,
		conv.ID, idx.Len(), idxBlob, formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("memory store: upsert index: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("memory store: commit archival: %w", err)
	}

	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	conv.archive = append(conv.archive, ArchivalEntry{ID: id, Content: text, CreatedAt: now, Embedding: vec})
	conv.index = idx

	s.logger.Debug("memory store: archived fact", "conversation_id", conv.ID, "id", id, "entries", idx.Len())
	return id, nil
}

// NearestArchival returns up to k entries nearest to query.
func (s *SQLiteStore) NearestArchival(conv *Conversation, query []float32, k int) []ArchivalEntry {
	hits := conv.index.Search(query, k)
	out := make([]ArchivalEntry, 0, len(hits))
	for _, h := range hits {
		if h.Pos < len(conv.archive) {
			out = append(out, conv.archive[h.Pos])
		}
	}
	return out
}

// Recall embeds query and returns the k nearest archival entries. Embedding
// failures are logged and yield no entries.
func Recall(ctx context.Context, s Store, conv *Conversation, embedder Embedder, query string, k int) []ArchivalEntry {
	if embedder == nil || query == "" || conv.ArchiveLen() == 0 {
		return nil
	}
	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("memory: recall embedding failed", "conversation_id", conv.ID, "err", err)
		return nil
	}
	if len(vec) == 0 {
		return nil
	}
	return s.NearestArchival(conv, vec, k)
}

var _ Store = (*SQLiteStore)(nil)
