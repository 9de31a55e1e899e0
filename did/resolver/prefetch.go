package resolver

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/pilacorp/go-did-credential/did"
)

// DefaultPrefetchLimit caps concurrent resolutions in Prefetch.
const DefaultPrefetchLimit = 8

// Prefetch resolves every distinct id concurrently so that a following
// sequential verification hits a warm cache. It stops at the first failure.
func Prefetch(ctx context.Context, r did.Resolver, ids []did.DID, limit int) error {
	if limit <= 0 {
		limit = DefaultPrefetchLimit
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	seen := make(map[did.DID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		id := id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := r.Resolve(id)
			return err
		})
	}

	return g.Wait()
}
