// Copyright (c) 2025 The Quill Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/quill-sh/quill/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotFound      = errors.New("conversation not found in archive")
	ErrDatabaseError = errors.New("database error")
)

// =============================================================================
// ARCHIVE
// =============================================================================

// Archive is a searchable SQLite store of finished conversations.
type Archive struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Entry is a single archived conversation in a listing.
type Entry struct {
	ID           string
	Summary      string
	Model        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	TokensUsed   int
}

// SearchResult pairs an archive entry with the message that matched.
type SearchResult struct {
	Entry
	Snippet string
	Role    string
}

// DefaultPath returns the default archive database location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".quill", "history.db"), nil
}

// Open opens (or creates) the archive database at path.
func Open(path string) (*Archive, error) {
	dbDir := filepath.Dir(path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	a := &Archive{db: db, path: path}

	if err := a.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return a, nil
}

// initSchema creates the database schema.
func (a *Archive) initSchema() error {
	if _, err := a.db.Exec(Schema); err != nil {
		return err
	}
	_, err := a.db.Exec(InitMetadata)
	return err
}

// Close closes the archive and releases resources.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Path returns the database file location.
func (a *Archive) Path() string {
	return a.path
}

// =============================================================================
// ARCHIVING
// =============================================================================

// Archive stores a conversation in the archive. Re-archiving a
// conversation with the same ID replaces the previous copy.
func (a *Archive) Archive(ctx context.Context, conv *storage.StoredConversation) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	// Replace any previous copy; messages cascade
	if _, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", conv.ID); err != nil {
		return fmt.Errorf("failed to replace conversation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, summary, model, created_at, updated_at, message_count, tokens_used)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, conv.ID, conv.Summary, conv.Model, conv.CreatedAt.Unix(), conv.UpdatedAt.Unix(), len(conv.Messages), conv.TokensUsed)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}

	for _, msg := range conv.Messages {
		var thinking sql.NullString
		if len(msg.Thinking) > 0 {
			data, err := json.Marshal(msg.Thinking)
			if err != nil {
				return fmt.Errorf("failed to encode thinking: %w", err)
			}
			thinking = sql.NullString{String: string(data), Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (conversation_id, message_id, role, content, thinking, created_at,
			                      token_count, duration_ms, tokens_per_sec, ttft_ms, tool_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, conv.ID, msg.ID, msg.Role, msg.Content, thinking, msg.Timestamp.Unix(),
			msg.TokenCount, msg.DurationMs, msg.TokensPerSec, msg.TTFTMs, msg.ToolName)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// =============================================================================
// LISTING AND RETRIEVAL
// =============================================================================

// List returns archived conversations, most recent first.
// limit 0 means no limit.
func (a *Archive) List(ctx context.Context, limit int) ([]Entry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	query := `
		SELECT id, summary, model, created_at, updated_at, message_count, tokens_used
		FROM conversations ORDER BY updated_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created, updated int64
		var tokens sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Summary, &e.Model, &created, &updated, &e.MessageCount, &tokens); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(created, 0)
		e.UpdatedAt = time.Unix(updated, 0)
		e.TokensUsed = int(tokens.Int64)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Get retrieves an archived conversation by ID.
func (a *Archive) Get(ctx context.Context, id string) (*storage.StoredConversation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	conv := &storage.StoredConversation{}
	var created, updated int64
	var tokens sql.NullInt64
	err := a.db.QueryRowContext(ctx, `
		SELECT id, summary, model, created_at, updated_at, tokens_used
		FROM conversations WHERE id = ?
	`, id).Scan(&conv.ID, &conv.Summary, &conv.Model, &created, &updated, &tokens)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	conv.CreatedAt = time.Unix(created, 0)
	conv.UpdatedAt = time.Unix(updated, 0)
	conv.TokensUsed = int(tokens.Int64)

	rows, err := a.db.QueryContext(ctx, `
		SELECT message_id, role, content, thinking, created_at,
		       token_count, duration_ms, tokens_per_sec, ttft_ms, tool_name
		FROM messages WHERE conversation_id = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg storage.StoredMessage
		var thinking, msgID, toolName sql.NullString
		var ts int64
		var tokenCount, durationMs, ttftMs sql.NullInt64
		var tps sql.NullFloat64
		if err := rows.Scan(&msgID, &msg.Role, &msg.Content, &thinking, &ts,
			&tokenCount, &durationMs, &tps, &ttftMs, &toolName); err != nil {
			return nil, err
		}
		msg.ID = msgID.String
		msg.Timestamp = time.Unix(ts, 0)
		msg.TokenCount = int(tokenCount.Int64)
		msg.DurationMs = durationMs.Int64
		msg.TokensPerSec = tps.Float64
		msg.TTFTMs = ttftMs.Int64
		msg.ToolName = toolName.String
		if thinking.Valid {
			if err := json.Unmarshal([]byte(thinking.String), &msg.Thinking); err != nil {
				return nil, fmt.Errorf("failed to decode thinking: %w", err)
			}
		}
		conv.Messages = append(conv.Messages, msg)
	}

	return conv, rows.Err()
}

// =============================================================================
// SEARCH
// =============================================================================

// Search finds archived conversations whose messages match the query.
// Uses full-text search; falls back to a LIKE scan when the query
// contains FTS operators that fail to parse.
func (a *Archive) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	results, err := a.searchFTS(ctx, query)
	if err != nil {
		return a.searchLike(ctx, query)
	}
	return results, nil
}

// searchFTS runs a full-text query against the messages index.
func (a *Archive) searchFTS(ctx context.Context, query string) ([]SearchResult, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT c.id, c.summary, c.model, c.created_at, c.updated_at, c.message_count,
		       m.role, snippet(messages_fts, 0, '', '', '...', 12)
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.rowid
		JOIN conversations c ON c.id = m.conversation_id
		WHERE messages_fts MATCH ?
		GROUP BY c.id
		ORDER BY c.updated_at DESC
		LIMIT 50
	`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSearchRows(rows)
}

// searchLike is the fallback substring search.
func (a *Archive) searchLike(ctx context.Context, query string) ([]SearchResult, error) {
	pattern := "%" + query + "%"
	rows, err := a.db.QueryContext(ctx, `
		SELECT c.id, c.summary, c.model, c.created_at, c.updated_at, c.message_count,
		       m.role, substr(m.content, 1, 80)
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.content LIKE ? COLLATE NOCASE
		GROUP BY c.id
		ORDER BY c.updated_at DESC
		LIMIT 50
	`, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	return scanSearchRows(rows)
}

func scanSearchRows(rows *sql.Rows) ([]SearchResult, error) {
	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var created, updated int64
		if err := rows.Scan(&r.ID, &r.Summary, &r.Model, &created, &updated,
			&r.MessageCount, &r.Role, &r.Snippet); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(created, 0)
		r.UpdatedAt = time.Unix(updated, 0)
		results = append(results, r)
	}
	return results, rows.Err()
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Delete removes an archived conversation.
func (a *Archive) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	result, err := a.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes all archived conversations.
func (a *Archive) Clear(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.ExecContext(ctx, "DELETE FROM conversations")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

// Stats describes the archive contents.
type Stats struct {
	ConversationCount int
	MessageCount      int
	DatabaseSize      int64
}

// Stats returns current archive statistics.
func (a *Archive) Stats(ctx context.Context) (Stats, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var s Stats
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations").Scan(&s.ConversationCount); err != nil {
		return s, err
	}
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&s.MessageCount); err != nil {
		return s, err
	}

	if info, err := os.Stat(a.path); err == nil {
		s.DatabaseSize = info.Size()
	}

	return s, nil
}
