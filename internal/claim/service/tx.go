package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "hearth/pkg/domain-errors"
	txcontext "hearth/pkg/platform/tx"
)

// Boundary provides a transactional scope for claim consumption: the
// token-used write and the visibility writes must commit or fail together.
// Implementations wrap a database transaction or, in-memory, a lock.
type Boundary interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// shardedBoundary provides fine-grained locking using sharded mutexes.
// Operations are distributed across N shards based on a hash of the token
// hash, so concurrent claims of distinct tokens do not contend while two
// claims of the same token serialize.
const numClaimShards = 128

// defaultTxTimeout bounds the duration of a claim transaction.
const defaultTxTimeout = 5 * time.Second

type shardedBoundary struct {
	shards  [numClaimShards]sync.Mutex
	timeout time.Duration
}

// NewMemoryBoundary returns a lock-based Boundary for in-memory stores.
func NewMemoryBoundary() Boundary {
	return &shardedBoundary{}
}

func (b *shardedBoundary) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := b.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := hashKey(key) % numClaimShards
	b.shards[shard].Lock()
	defer b.shards[shard].Unlock()

	// Check again after acquiring the lock.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

// hashKey uses FNV-1a for even shard distribution.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

type sqlBoundary struct {
	db *sql.DB
}

// NewSQLBoundary returns a Boundary backed by database transactions. Stores
// that honor the context transaction participate in it.
func NewSQLBoundary(db *sql.DB) Boundary {
	return &sqlBoundary{db: db}
}

func (b *sqlBoundary) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return txcontext.Within(ctx, b.db, fn)
}
