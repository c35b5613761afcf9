// Package httputil provides retry helpers shared by the network clients.
//
// # Overview
//
//   - [Retry]: exponential backoff driven by [RetryableError]
//   - [Do]: fixed backoff driven by an explicit [Result] per attempt
//
// # Explicit results
//
// [Do] never inspects error types. Each attempt states what happened:
//
//	resp, err := httputil.Do(ctx, 5, 2*time.Second, func(n int) httputil.Result[*http.Response] {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable[*http.Response](err)
//	    }
//	    return httputil.Success(resp)
//	})
//
// When every attempt was retryable, [Do] returns an [ExhaustedError]
// carrying the last failure.
package httputil
