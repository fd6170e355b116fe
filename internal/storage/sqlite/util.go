package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alioshr/task-orchestrator-sub000/internal/debug"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// dbExecutor abstracts *sql.DB, *sql.Conn, and *sql.Tx so repository helpers
// run identically inside and outside explicit transactions.
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Tx executes repository operations against one executor. Outside explicit
// transactions it runs in autocommit mode on the pooled handle.
type Tx struct {
	q dbExecutor
	s *Store
}

var _ storage.Tx = (*Tx)(nil)

// reader returns an autocommit Tx for read paths.
func (s *Store) reader() *Tx {
	return &Tx{q: s.db, s: s}
}

// RunInTransaction runs fn inside BEGIN IMMEDIATE/COMMIT on a dedicated
// connection, rolling back on error or panic. IMMEDIATE takes the write
// lock up front so a busy database fails fast here instead of mid-commit.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.write(ctx, func(tx *Tx) error { return fn(tx) })
}

// RunInTransaction flattens nested calls into the enclosing transaction.
func (t *Tx) RunInTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	return fn(t)
}

func (s *Store) write(ctx context.Context, fn func(tx *Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return types.WrapError(types.CodeStorage, err, "acquire connection")
	}
	defer conn.Close()

	// database/sql cannot request IMMEDIATE through BeginTx.
	if err := beginImmediateWithRetry(ctx, conn, 5, 10*time.Millisecond); err != nil {
		return types.WrapError(types.CodeStorage, err, "begin transaction")
	}

	committed := false
	defer func() {
		if p := recover(); p != nil {
			if _, err := conn.ExecContext(context.Background(), "ROLLBACK"); err != nil {
				debug.Logf("rollback after panic failed: %v", err)
			}
			panic(p)
		}
		if !committed {
			if _, err := conn.ExecContext(context.Background(), "ROLLBACK"); err != nil {
				debug.Logf("rollback failed: %v", err)
			}
		}
	}()

	if err := fn(&Tx{q: conn, s: s}); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return types.WrapError(types.CodeStorage, err, "commit transaction")
	}
	committed = true
	return nil
}

func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn, attempts int, initialDelay time.Duration) error {
	delay := initialDelay
	var err error
	for i := 0; i < attempts; i++ {
		if _, err = conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err == nil {
			return nil
		}
		if !isBusyErr(err) {
			return err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return err
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// generateID returns a version-4 UUID rendered as 32 lowercase hex
// characters without separators.
func generateID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// timeLayout renders RFC 3339 UTC with millisecond precision. All persisted
// timestamps use this form.
const timeLayout = "2006-01-02T15:04:05.000Z"

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Tolerate second-precision rows written by early versions.
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2.UTC()
		}
		debug.Logf("unparseable timestamp %q: %v", s, err)
		return time.Time{}
	}
	return t
}

// encodeList renders a string list as a JSON text column. Empty lists are
// stored as [] so LIKE scans never meet NULL.
func encodeList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		debug.Logf("unparseable list column %q: %v", raw, err)
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// sqlPlaceholders returns "?, ?, ?" for n values.
func sqlPlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func stringArgs(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// searchVector denormalizes the searchable text fields into one lowercase
// blob for substring queries.
func searchVector(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.ToLower(strings.Join(kept, " "))
}

// likePattern quotes an id for substring search inside a JSON array column.
func likePattern(id string) string {
	return `%"` + id + `"%`
}

// Field extraction for map-based updates. JSON-decoded payloads deliver
// float64 for numbers and []interface{} for lists; both are accepted.

func stringValue(key string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", types.Validationf("field %q must be a string", key)
	}
	return s, nil
}

func requiredStringValue(key string, v interface{}) (string, error) {
	s, err := stringValue(key, v)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", types.Validationf("field %q must not be empty", key)
	}
	return strings.TrimSpace(s), nil
}

func intValue(key string, v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	}
	return 0, types.Validationf("field %q must be an integer", key)
}

func stringListValue(key string, v interface{}) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return list, nil
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, types.Validationf("field %q must be a list of strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, nil
	}
	return nil, types.Validationf("field %q must be a list of strings", key)
}

// checkVersion enforces the optimistic-concurrency gate. Every mutation
// demands the caller's expected version; a stale one is a conflict. kind is
// the lowercase noun used in messages.
func checkVersion(kind, id string, expected, found int) error {
	if expected < 1 {
		return types.Validationf("expected version is required for %s %s", kind, id)
	}
	if expected != found {
		return types.Conflictf("%s %s version mismatch: expected %d, found %d",
			kind, id, expected, found)
	}
	return nil
}

// entityKind lowercases an entity type for messages.
func entityKind(entity types.EntityType) string {
	return strings.ToLower(string(entity))
}
