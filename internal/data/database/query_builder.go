package database

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ConditionType selects the SQL operator a Condition renders with.
type ConditionType string

const (
	Equal              ConditionType = "="
	NotEqual           ConditionType = "!="
	GreaterThan        ConditionType = ">"
	GreaterThanOrEqual ConditionType = ">="
	LessThan           ConditionType = "<"
	LessThanOrEqual    ConditionType = "<="
	ILike              ConditionType = "ILIKE"
	In                 ConditionType = "IN"
)

// Limit and offset default to these sentinels so that an explicit zero can
// still be rendered.
const (
	unsetLimit  = -1
	unsetOffset = -1
)

// Condition is a single WHERE predicate. Field is identifier-quoted when the
// query is rendered and Value is always passed as a bind argument, never
// interpolated.
type Condition struct {
	Field string
	Type  ConditionType
	Value any
}

func WhereCond(field string, condType ConditionType, value any) Condition {
	return Condition{Field: field, Type: condType, Value: value}
}

// render returns the SQL fragment for the condition, its bind arguments, and
// the next free placeholder index. A condition with an empty field, an
// unknown operator, or an empty IN list renders to "" and is skipped.
func (c Condition) render(param int) (string, []any, int) {
	if c.Field == "" {
		return "", nil, param
	}
	field := sanitizeIdentifier(c.Field)
	switch c.Type {
	case In:
		return renderInList(field, c.Value, param)
	case Equal, NotEqual, GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual, ILike:
		return fmt.Sprintf("%s %s $%d", field, c.Type, param), []any{c.Value}, param + 1
	}
	return "", nil, param
}

// renderInList expands a slice value into "field IN ($n, ...)". Reflection
// keeps call sites free to pass []string, []int, or any other slice type.
func renderInList(field string, value any, param int) (string, []any, int) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice || rv.Len() == 0 {
		return "", nil, param
	}
	placeholders := make([]string, rv.Len())
	args := make([]any, rv.Len())
	for i := range rv.Len() {
		placeholders[i] = fmt.Sprintf("$%d", param)
		args[i] = rv.Index(i).Interface()
		param++
	}
	return fmt.Sprintf("%s IN (%s)", field, strings.Join(placeholders, ", ")), args, param
}

// ListQueryOptions describes a single-table list or count query.
type ListQueryOptions struct {
	Table      string
	Columns    []string
	CountOnly  bool
	Conditions []Condition
	OrderBy    string
	OrderDir   string
	Limit      int
	Offset     int
}

type ListQueryOption func(*ListQueryOptions)

func NewListQueryOptions(table string, opts ...ListQueryOption) *ListQueryOptions {
	options := &ListQueryOptions{
		Table:      table,
		Columns:    []string{},
		CountOnly:  false,
		Conditions: []Condition{},
		OrderBy:    "",
		OrderDir:   "",
		Limit:      unsetLimit,
		Offset:     unsetOffset,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithColumns sets the columns to select. Specs are plain or dotted
// identifiers ("name", "saved_views.name"); expressions are not supported.
func WithColumns(cols ...string) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.Columns = cols
	}
}

// WithCondition appends a single condition.
func WithCondition(cond Condition) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.Conditions = append(o.Conditions, cond)
	}
}

// WithConditions replaces the condition list.
func WithConditions(conds ...Condition) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.Conditions = conds
	}
}

// WithOrderBy sets the ordering column and direction.
func WithOrderBy(column, direction string) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.OrderBy = column
		o.OrderDir = direction
	}
}

// WithLimit sets the limit. Accepts 0; negative values are ignored.
func WithLimit(limit int) ListQueryOption {
	return func(o *ListQueryOptions) {
		if limit >= 0 {
			o.Limit = limit
		}
	}
}

// WithOffset sets the offset. Accepts 0; negative values are ignored.
func WithOffset(offset int) ListQueryOption {
	return func(o *ListQueryOptions) {
		if offset >= 0 {
			o.Offset = offset
		}
	}
}

// WithCountOnly switches the query to SELECT COUNT(*), dropping columns,
// ordering, and pagination.
func WithCountOnly() ListQueryOption {
	return func(o *ListQueryOptions) {
		o.CountOnly = true
	}
}

func sanitizeIdentifier(ident string) string {
	return pgx.Identifier{ident}.Sanitize()
}

// sanitizeQualifiedIdentifier quotes dotted identifiers such as
// "saved_views.name" part by part.
func sanitizeQualifiedIdentifier(ident string) string {
	return pgx.Identifier(strings.Split(ident, ".")).Sanitize()
}

// selectClause renders the SELECT list with every column identifier quoted.
func selectClause(o *ListQueryOptions) string {
	if o.CountOnly {
		return "SELECT COUNT(*) "
	}
	if len(o.Columns) == 0 {
		return "SELECT * "
	}
	cols := make([]string, len(o.Columns))
	for i, col := range o.Columns {
		cols[i] = sanitizeQualifiedIdentifier(col)
	}
	return "SELECT " + strings.Join(cols, ", ") + " "
}

// whereClause renders the conditions joined with AND, numbering bind
// placeholders from startParam. Conditions that render empty are dropped.
func whereClause(conds []Condition, startParam int) (string, []any, int) {
	rendered := make([]string, 0, len(conds))
	args := []any{}
	param := startParam
	for _, cond := range conds {
		frag, condArgs, next := cond.render(param)
		if frag == "" {
			continue
		}
		rendered = append(rendered, frag)
		args = append(args, condArgs...)
		param = next
	}
	if len(rendered) == 0 {
		return "", args, param
	}
	return "WHERE " + strings.Join(rendered, " AND "), args, param
}

// orderLimitOffset renders ORDER BY, LIMIT, and OFFSET. Limit and offset are
// bound as arguments and numbered after the WHERE arguments.
func orderLimitOffset(o *ListQueryOptions, param int, args []any) (string, []any) {
	var b strings.Builder
	if o.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(sanitizeQualifiedIdentifier(o.OrderBy))
		if dir := strings.ToUpper(o.OrderDir); dir == "ASC" || dir == "DESC" {
			b.WriteString(" ")
			b.WriteString(dir)
		}
	}
	if o.Limit != unsetLimit {
		fmt.Fprintf(&b, " LIMIT $%d", param)
		args = append(args, o.Limit)
		param++
	}
	if o.Offset != unsetOffset {
		fmt.Fprintf(&b, " OFFSET $%d", param)
		args = append(args, o.Offset)
	}
	return b.String(), args
}

// BuildListQuery renders options into a SQL statement and its bind arguments.
// Identifiers are quoted via pgx.Identifier and every value is parameterized,
// so the output is safe to hand to QueryContext directly.
//
//	opts := NewListQueryOptions("saved_views",
//		WithColumns("id", "user_id", "dataset", "name"),
//		WithCondition(WhereCond("user_id", Equal, "ops.clerk")),
//		WithOrderBy("name", "ASC"),
//		WithLimit(50),
//	)
//	query, args := BuildListQuery(opts)
func BuildListQuery(options *ListQueryOptions) (string, []any) {
	if options == nil {
		return "", nil
	}

	var query strings.Builder
	query.WriteString(selectClause(options))
	query.WriteString("FROM ")
	query.WriteString(sanitizeIdentifier(options.Table))

	where, args, nextParam := whereClause(options.Conditions, 1)
	if where != "" {
		query.WriteString(" ")
		query.WriteString(where)
	}

	// Counts ignore ordering and pagination.
	if options.CountOnly {
		return query.String(), args
	}

	tail, args := orderLimitOffset(options, nextParam, args)
	query.WriteString(tail)
	return query.String(), args
}
