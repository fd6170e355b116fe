package sqlite

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// wrapDBError converts driver failures into coded errors. Constraint
// violations surface as CONFLICT, missing rows as NOT_FOUND, everything
// else as STORAGE. Already-coded errors pass through untouched.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if types.CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return types.NotFoundf("%s: not found", op)
	}
	if isUniqueViolation(err) {
		return types.WrapError(types.CodeConflict, err, "%s: already exists", op)
	}
	if isForeignKeyViolation(err) {
		return types.WrapError(types.CodeConflict, err, "%s: referenced row is in use", op)
	}
	return types.WrapError(types.CodeStorage, err, "%s", op)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
