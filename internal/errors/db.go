package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// reDetailKey pulls the column list out of a unique-violation detail line,
// which Postgres formats as `Key (col, ...)=(val, ...) already exists.`.
var reDetailKey = regexp.MustCompile(`Key \(([^)]+)\)=`)

// MapDBError converts database failures into AppErrors:
//
//	pgx.ErrNoRows            -> not_found
//	unique violation         -> conflict (field attributed where possible)
//	check/not-null violation -> validation
//	context deadline/cancel  -> timeout / canceled
//	any other Postgres error -> internal
//
// Errors it does not recognize pass through unchanged.
func MapDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "Request timed out. Please try again.")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "Request was canceled.")
	case errors.Is(err, pgx.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "Resource not found")
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		appErr := Wrap(pgErr, ErrCodeConflict, "This value already exists. Please choose a different one.")
		appErr.Field = uniqueViolationField(pgErr)
		return appErr
	case pgerrcode.NotNullViolation:
		return constraintValidationError(pgErr, "This field is required.", "Required field is missing. Please check your input.")
	case pgerrcode.CheckViolation:
		return constraintValidationError(pgErr, "This field has an invalid value.", "Invalid data. Please check your input.")
	default:
		return Wrap(pgErr, ErrCodeInternal, "A database error occurred. Please try again.")
	}
}

// constraintValidationError builds a validation error, picking the field
// message when the driver reports which column was violated.
func constraintValidationError(pgErr *pgconn.PgError, fieldMessage, genericMessage string) *AppError {
	if pgErr.ColumnName == "" {
		return Wrap(pgErr, ErrCodeValidation, genericMessage)
	}
	appErr := Wrap(pgErr, ErrCodeValidation, fieldMessage)
	appErr.Field = pgErr.ColumnName
	return appErr
}

// uniqueViolationField attributes a unique violation to a column. The driver
// metadata is authoritative; the detail line covers multi-column constraints;
// parsing the constraint name is the last resort and gives up when ambiguous.
func uniqueViolationField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reDetailKey.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return inferFieldFromConstraint(pgErr.ConstraintName)
}

// inferFieldFromConstraint guesses the column behind a `table_column_key`
// style constraint name. Anything that does not match that three-part shape,
// or whose middle segment is a SQL function (an expression index), yields ""
// rather than a misleading attribution.
func inferFieldFromConstraint(constraintName string) string {
	parts := strings.Split(constraintName, "_")
	if constraintName == "" || len(parts) != 3 {
		return ""
	}
	if isFunctionName(parts[1]) {
		return ""
	}
	return parts[1]
}

var sqlFunctionNames = map[string]struct{}{
	"lower": {}, "upper": {}, "trim": {}, "ltrim": {}, "rtrim": {},
	"md5": {}, "sha1": {}, "sha256": {}, "encode": {}, "decode": {},
}

// isFunctionName reports whether s is a SQL function commonly used in
// expression indexes.
func isFunctionName(s string) bool {
	_, ok := sqlFunctionNames[strings.ToLower(s)]
	return ok
}
