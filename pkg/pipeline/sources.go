package pipeline

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/restoretrace/pkg/errors"
	"github.com/matzehuels/restoretrace/pkg/operation"
)

// ResolveSources pairs each feed with the PackageBaseAddress resources its
// requests are classified against. Overrides win; remote feeds are looked
// up through r unless offline or r is nil; everything else, including
// failed lookups, falls back to the feed URL itself.
func ResolveSources(ctx context.Context, feeds []string, overrides map[string][]string, r Resolver, offline bool, logger *log.Logger) ([]operation.Source, error) {
	sources := make([]operation.Source, len(feeds))
	for i, feed := range feeds {
		sources[i] = operation.Source{Name: feed}

		if bases, ok := overrides[feed]; ok && len(bases) > 0 {
			sources[i].PackageBaseAddresses = bases
			continue
		}
		if !offline && r != nil && isHTTP(feed) {
			bases, err := r.PackageBaseAddresses(ctx, feed)
			if err == nil {
				sources[i].PackageBaseAddresses = bases
				continue
			}
			if errors.IsCanceled(err) {
				return nil, err
			}
			logger.Warn("service index lookup failed, using feed URL", "feed", feed, "error", err)
		}
		sources[i].PackageBaseAddresses = []string{feed}
	}
	return sources, nil
}

func isHTTP(feed string) bool {
	return strings.HasPrefix(feed, "http://") || strings.HasPrefix(feed, "https://")
}
