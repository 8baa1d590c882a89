package scanner

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Locator finds raw entries. Implementations may do I/O; the container never
// calls them once resolution has started.
type Locator interface {
	Locate(ctx context.Context) ([]Entry, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) ([]Entry, error)

func (f LocatorFunc) Locate(ctx context.Context) ([]Entry, error) { return f(ctx) }

// Discover runs every locator concurrently and waits for all of them. The
// merged result keeps locator order, then each locator's own order. The
// first failure cancels the others.
func Discover(ctx context.Context, locators ...Locator) ([]Entry, error) {
	results := make([][]Entry, len(locators))
	g, ctx := errgroup.WithContext(ctx)
	for i, l := range locators {
		g.Go(func() error {
			entries, err := l.Locate(ctx)
			if err != nil {
				return fmt.Errorf("locator %d: %w", i, err)
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices.Concat(results...), nil
}
