package domain

import "context"

// Database defines lifecycle operations for the underlying database.
// Each implementation owns its own migration files and strategy, ensuring
// the entire backend is swappable.
type Database interface {
	Migrate(ctx context.Context) error
	Close() error
}

// Scoper pins a single store connection to a request context. Every
// repository call made with the returned context runs on that connection
// until release is called.
type Scoper interface {
	Acquire(ctx context.Context) (scoped context.Context, release func(), err error)
}

// Transactor runs fn inside a transaction. The transaction is committed when
// fn returns nil and rolled back otherwise. Repository calls made with the
// context passed to fn join the transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
