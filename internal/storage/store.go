package storage

import (
	"context"

	"gorm.io/gorm"
)

// Store wraps a gorm handle. A Store obtained inside WithTx is bound to that
// transaction; every method on it joins the transaction.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

// WithTx runs fn inside one transaction. Any error returned by fn, or a panic,
// rolls back every write made through the transactional Store.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}
