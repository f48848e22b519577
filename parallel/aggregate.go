// Package parallel runs the scatter/gather form of the distinct aggregate:
// each worker accumulates one partition into a private sorted set, and a
// merge-tree reduction combines the partial sets into the global result.
//
// Correctness of any reduction order rests on Merge being commutative and
// associative over sets of distinct elements, so the tree shape is purely a
// scheduling concern.
package parallel

import (
	"context"
	"iter"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/distinctset/resource"
	"github.com/hupe1980/distinctset/set"
)

// Options configures a Distinct run.
type Options struct {
	// Concurrency bounds the number of partition workers running at once.
	// Defaults to runtime.GOMAXPROCS(0).
	Concurrency int

	// Resources, when set, gates workers against a shared budget so
	// several concurrent aggregations don't oversubscribe the host.
	// A nil controller imposes no limits.
	Resources *resource.Controller

	// SetOptions is applied to every per-partition set.
	SetOptions func(*set.Options)
}

// Distinct aggregates the given partitions and returns the merged set
// holding the global distinct elements. Partitions are expected to be
// disjoint slices of the input, but overlap is tolerated: duplicates across
// partitions are eliminated by the merge, not double-counted.
//
// Each partition is a finite sequence of elements of exactly itemSize bytes.
func Distinct(ctx context.Context, itemSize int, partitions []iter.Seq[[]byte], optFns ...func(*Options)) (*set.Set, error) {
	o := Options{
		Concurrency: runtime.GOMAXPROCS(0),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.GOMAXPROCS(0)
	}

	partials := make([]*set.Set, len(partitions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Concurrency)

	for i, part := range partitions {
		g.Go(func() error {
			if err := o.Resources.AcquireWorker(gctx); err != nil {
				return err
			}
			defer o.Resources.ReleaseWorker()

			s, err := buildPartition(gctx, itemSize, part, o.SetOptions)
			if err != nil {
				return err
			}
			partials[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Reduce(ctx, itemSize, partials, optFns...)
}

// buildPartition accumulates one partition into a private set. The context
// is checked between elements so a failed sibling cancels the scan.
func buildPartition(ctx context.Context, itemSize int, part iter.Seq[[]byte], setOpts func(*set.Options)) (*set.Set, error) {
	s, err := set.New(itemSize, setOpts)
	if err != nil {
		return nil, err
	}

	const checkEvery = 1024
	n := 0
	for element := range part {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		n++
		if err := s.Append(element); err != nil {
			return nil, err
		}
	}

	// Final sort happens in the worker, spreading CPU across partitions.
	if err := s.Compact(false); err != nil {
		return nil, err
	}
	return s, nil
}

// Reduce merges partial sets pairwise, level by level, until one remains.
// nil entries (partitions that saw no data) are skipped. If every partition
// was empty, an empty set is returned.
func Reduce(ctx context.Context, itemSize int, partials []*set.Set, optFns ...func(*Options)) (*set.Set, error) {
	o := Options{
		Concurrency: runtime.GOMAXPROCS(0),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.GOMAXPROCS(0)
	}

	live := make([]*set.Set, 0, len(partials))
	for _, s := range partials {
		if s != nil {
			live = append(live, s)
		}
	}

	if len(live) == 0 {
		return set.New(itemSize, o.SetOptions)
	}

	for len(live) > 1 {
		next := make([]*set.Set, (len(live)+1)/2)

		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(o.Concurrency)

		for i := 0; i < len(live); i += 2 {
			if i+1 == len(live) {
				next[i/2] = live[i]
				continue
			}
			left, right := live[i], live[i+1]
			slot := i / 2
			g.Go(func() error {
				if err := left.Merge(right); err != nil {
					return err
				}
				next[slot] = left
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
		live = next
	}

	return live[0], nil
}
