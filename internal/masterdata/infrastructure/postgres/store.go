package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "site-registry/internal/masterdata/domain"
)

// Store runs registry units of work in Postgres transactions.
type Store struct {
	db *sql.DB
}

// NewStore constructs a Store.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("masterdata store: nil db")
	}
	return &Store{db: db}, nil
}

// WithinTx runs fn with repositories bound to one transaction. The transaction
// is rolled back when fn returns an error or panics.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos masterdata.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("masterdata store: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	repos := masterdata.Repositories{
		Sites:  NewSiteRepository(tx),
		Groups: NewGroupRepository(tx),
	}
	if err := fn(ctx, repos); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return translateError(err)
	}
	return nil
}
