package remotestore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arquivadoc/arquivadoc/internal/logging"
	"github.com/arquivadoc/arquivadoc/internal/metrics"
	"github.com/arquivadoc/arquivadoc/internal/retry"
)

// Resolver walks a logical folder path on the remote store, finding or
// creating each segment in order and memoizing results in a FolderCache.
type Resolver struct {
	client Client
	cache  *FolderCache
	retry  retry.Config
}

// NewResolver creates a resolver over client backed by cache.
func NewResolver(client Client, cache *FolderCache) *Resolver {
	return &Resolver{
		client: client,
		cache:  cache,
		retry:  retry.DefaultConfig(),
	}
}

// Resolve returns the folder id at the end of segments, starting from
// rootID. Missing folders are created along the way. Segment names are
// matched as exact literal strings.
//
// Remote errors propagate untouched and no partial-path cleanup happens:
// a partially created path is rediscovered and reused by the next call.
func (r *Resolver) Resolve(ctx context.Context, rootID string, segments []string) (string, error) {
	if rootID == "" {
		return "", fmt.Errorf("resolve folder path: empty root folder id")
	}
	if len(segments) == 0 {
		return "", fmt.Errorf("resolve folder path: empty segment list")
	}
	for i, s := range segments {
		if s == "" {
			return "", fmt.Errorf("resolve folder path: empty segment at index %d", i)
		}
	}

	parent := rootID
	for _, name := range segments {
		id, err := r.resolveSegment(ctx, parent, name)
		if err != nil {
			return "", err
		}
		parent = id
	}
	return parent, nil
}

func (r *Resolver) resolveSegment(ctx context.Context, parentID, name string) (string, error) {
	if id, ok := r.cache.Get(parentID, name); ok {
		metrics.RecordFolderCacheHit()
		return id, nil
	}
	metrics.RecordFolderCacheMiss()

	// Serialize per (parent, name) so concurrent uploads resolving the
	// same new path cannot create duplicate remote folders.
	unlock := r.cache.LockKey(parentID, name)
	defer unlock()

	// Another resolution may have won the lock race and filled the cache.
	if id, ok := r.cache.Get(parentID, name); ok {
		return id, nil
	}

	// Listing is idempotent, so transient failures are worth retrying.
	folders, err := retry.DoWithResult(ctx, r.retry, func() ([]Folder, error) {
		fs, err := r.client.ListFolders(ctx, name, parentID)
		return fs, retry.Retryable(err)
	})
	if err != nil {
		return "", fmt.Errorf("list folders %q under %s: %w", name, parentID, err)
	}

	if len(folders) > 0 {
		// Pre-existing duplicates are possible; take the first result
		// deterministically and leave repair to an operator.
		if len(folders) > 1 {
			logging.Warn("duplicate remote folders, using first",
				zap.String("name", name),
				zap.String("parent", parentID),
				zap.Int("count", len(folders)))
		}
		r.cache.Put(parentID, name, folders[0].ID)
		return folders[0].ID, nil
	}

	// Creation is deliberately not retried: a timed-out create may still
	// have succeeded remotely and a retry would duplicate the folder.
	folder, err := r.client.CreateFolder(ctx, name, parentID)
	if err != nil {
		return "", fmt.Errorf("create folder %q under %s: %w", name, parentID, err)
	}
	metrics.RecordFolderCreate()
	logging.Debug("created remote folder",
		zap.String("name", name),
		zap.String("parent", parentID),
		zap.String("id", folder.ID))

	r.cache.Put(parentID, name, folder.ID)
	return folder.ID, nil
}
