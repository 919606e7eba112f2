// Package httputil provides HTTP plumbing shared by the NuGet client and
// the replay command.
//
//   - [Retry]: exponential backoff for transient failures, stretched to
//     the server's Retry-After
//   - [CheckStatus]: turns non-2xx responses into errors, retryable for 429
//     and 5xx
//   - [NewClient]: an *http.Client with a timeout and a User-Agent
//
// Usage:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err)
//	    }
//	    defer resp.Body.Close()
//	    return httputil.CheckStatus(resp)
//	})
package httputil
