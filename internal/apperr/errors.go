// Package apperr holds the sentinel errors shared across tasklint packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnreadable    = errors.New("unreadable")
	ErrBackupFailed  = errors.New("backup failed")
	ErrMalformedID   = errors.New("malformed task id")
)
