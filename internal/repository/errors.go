package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrStateConflict is returned when a conditional update matched no row
	// because the record was no longer in the expected state.
	ErrStateConflict = errors.New("record state changed")
	ErrDuplicate     = errors.New("duplicate record")
)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func conflict(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStateConflict
	}
	return err
}
