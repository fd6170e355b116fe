package sqlite

import (
	"fmt"
	"strings"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// queryBuilder accumulates WHERE fragments and their args. Fragments are
// ANDed together; an empty builder renders no WHERE clause at all.
type queryBuilder struct {
	where []string
	args  []interface{}
}

func (qb *queryBuilder) add(fragment string, args ...interface{}) {
	qb.where = append(qb.where, fragment)
	qb.args = append(qb.args, args...)
}

func (qb *queryBuilder) clause() string {
	if len(qb.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(qb.where, " AND ")
}

// escapeLike neutralizes LIKE metacharacters in user text. The queries pair
// it with ESCAPE '\'.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func (qb *queryBuilder) applyQuery(query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}
	qb.add(`search_vector LIKE ? ESCAPE '\'`, "%"+strings.ToLower(escapeLike(query))+"%")
}

// applyEnumFilter handles the comma-separated status and priority filters.
// Each token is either VAL (include) or !VAL (exclude); both sets may be
// present in one expression.
func (qb *queryBuilder) applyEnumFilter(column, expr string) {
	var include, exclude []string
	for _, tok := range strings.Split(expr, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" || tok == "!" {
			continue
		}
		if strings.HasPrefix(tok, "!") {
			exclude = append(exclude, strings.ToUpper(strings.TrimSpace(tok[1:])))
		} else {
			include = append(include, strings.ToUpper(tok))
		}
	}
	if len(include) > 0 {
		qb.add(fmt.Sprintf("%s IN (%s)", column, sqlPlaceholders(len(include))), stringArgs(include)...)
	}
	if len(exclude) > 0 {
		qb.add(fmt.Sprintf("%s NOT IN (%s)", column, sqlPlaceholders(len(exclude))), stringArgs(exclude)...)
	}
}

// applyTagsAll requires the entity to carry every listed tag.
func (qb *queryBuilder) applyTagsAll(entity types.EntityType, tags []string) {
	for _, tag := range types.NormalizeTags(tags) {
		qb.add("id IN (SELECT entity_id FROM tags WHERE entity_type = ? AND tag = ?)",
			string(entity), tag)
	}
}

// applyTagsAny requires the entity to carry at least one listed tag.
func (qb *queryBuilder) applyTagsAny(entity types.EntityType, tags []string) {
	normalized := types.NormalizeTags(tags)
	if len(normalized) == 0 {
		return
	}
	qb.add(fmt.Sprintf("id IN (SELECT entity_id FROM tags WHERE entity_type = ? AND tag IN (%s))",
		sqlPlaceholders(len(normalized))),
		append([]interface{}{string(entity)}, stringArgs(normalized)...)...)
}

// splitList breaks a comma-separated filter expression into trimmed tokens.
func splitList(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// pagination renders LIMIT/OFFSET. Limit <= 0 means unbounded; SQLite still
// needs a LIMIT -1 when an OFFSET is present.
func pagination(limit, offset int) (string, []interface{}) {
	if limit <= 0 {
		if offset > 0 {
			return " LIMIT -1 OFFSET ?", []interface{}{offset}
		}
		return "", nil
	}
	if offset > 0 {
		return " LIMIT ? OFFSET ?", []interface{}{limit, offset}
	}
	return " LIMIT ?", []interface{}{limit}
}
