package nuget

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/matzehuels/restoretrace/pkg/errors"
	"github.com/matzehuels/restoretrace/pkg/httputil"
)

// APIKeyHeader carries the feed API key on push requests.
const APIKeyHeader = "X-NuGet-ApiKey"

// PushURL resolves the PackagePublish resource of feed.
func (c *Client) PushURL(ctx context.Context, feed string) (string, error) {
	idx, err := c.ServiceIndex(ctx, feed)
	if err != nil {
		return "", err
	}
	ids := idx.Find(TypePackagePublish)
	if len(ids) == 0 {
		return "", errors.New(errors.ErrCodeNotFound, "%s advertises no %s resource", feed, TypePackagePublish)
	}
	return ids[0], nil
}

// Push uploads the .nupkg at path to the publish endpoint pushURL. A 409
// Conflict means the version already exists and is reported as
// INVALID_INPUT.
func (c *Client) Push(ctx context.Context, pushURL, path, apiKey string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("package", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Content-Type", mw.FormDataContentType())
	if apiKey != "" {
		header.Set(APIKeyHeader, apiKey)
	}

	err = httputil.RetryWithBackoff(ctx, func() error {
		resp, err := c.do(ctx, http.MethodPut, pushURL, bytes.NewReader(body.Bytes()), header)
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.Body.Close()
	})
	var se *httputil.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusConflict {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "%s already exists on the feed", filepath.Base(path))
	}
	if err != nil {
		return wrapHTTP(err, pushURL)
	}
	c.logger.Debug("pushed package", "path", path, "url", pushURL)
	return nil
}
