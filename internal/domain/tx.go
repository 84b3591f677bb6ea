package domain

import "context"

// TransactionManager runs fn inside a storage transaction. The transaction
// rides on the context so repositories pick it up transparently.
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
