package api

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// OperationError collects the failures of an operation applied to many downloads.
type OperationError struct {
	Op     string
	Errors map[string]error // by GID
}

func newOperationError(op string) *OperationError {
	return &OperationError{Op: op, Errors: make(map[string]error)}
}

func (e *OperationError) add(gid string, err error) {
	e.Errors[gid] = err
}

// err returns nil when nothing failed.
func (e *OperationError) err() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

func (e *OperationError) Error() string {
	gids := lo.Keys(e.Errors)
	sort.Strings(gids)
	msgs := lo.Map(gids, func(gid string, _ int) string {
		return gid + ": " + e.Errors[gid].Error()
	})
	return "cannot " + e.Op + " " + strings.Join(msgs, "; ")
}

// Unwrap lets errors.As find the typed errors of individual downloads.
func (e *OperationError) Unwrap() []error {
	gids := lo.Keys(e.Errors)
	sort.Strings(gids)
	return lo.Map(gids, func(gid string, _ int) error { return e.Errors[gid] })
}
