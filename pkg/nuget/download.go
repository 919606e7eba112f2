package nuget

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Downloaded describes one file written by [Client.DownloadAll].
type Downloaded struct {
	Version string
	Path    string
	Size    int64
}

// DownloadAll fetches every version of id from base into dir, running at
// most concurrency downloads at once. Files are named like the flat
// container does: {lower id}.{lower version}.nupkg. Existing files are
// overwritten. The first failure cancels the remaining downloads.
func (c *Client) DownloadAll(ctx context.Context, base, id, dir string, concurrency int) ([]Downloaded, error) {
	versions, err := c.Versions(ctx, base, id)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	out := make([]Downloaded, len(versions))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, v := range versions {
		g.Go(func() error {
			path := filepath.Join(dir, strings.ToLower(id)+"."+strings.ToLower(v)+".nupkg")
			size, err := c.downloadFile(ctx, base, id, v, path)
			if err != nil {
				return err
			}
			out[i] = Downloaded{Version: v, Path: path, Size: size}
			c.logger.Info("downloaded", "id", id, "version", v, "bytes", size)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) downloadFile(ctx context.Context, base, id, version, path string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := c.Download(ctx, base, id, version, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	return n, os.Rename(tmp.Name(), path)
}
