package datamodel

import "errors"

var (
	ErrColumnNotFound     = errors.New("column not found")
	ErrDuplicateColumn    = errors.New("duplicate column")
	ErrRowIndexOutOfRange = errors.New("row index out of range")
	ErrTypeMismatch       = errors.New("column type mismatch")
	ErrStructureFrozen    = errors.New("data model structure is frozen")
	ErrValuesFrozen       = errors.New("data model values are frozen")
	ErrSortData           = errors.New("column data cannot be sorted")
	ErrInvalidValue       = errors.New("invalid value")
	ErrInvalidSource      = errors.New("invalid data model source")
)

// IsDataError reports whether err comes from a data model invariant.
func IsDataError(err error) bool {
	for _, target := range []error{
		ErrColumnNotFound,
		ErrDuplicateColumn,
		ErrRowIndexOutOfRange,
		ErrTypeMismatch,
		ErrStructureFrozen,
		ErrValuesFrozen,
		ErrSortData,
		ErrInvalidValue,
		ErrInvalidSource,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
