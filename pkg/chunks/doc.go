// Package chunks loads the project dataset incrementally.
//
// The dataset is a manifest plus N independently fetched chunk files. A
// Session loads the manifest and chunk 0 in parallel, then loads the rest on
// demand. Loading is coordinated so that:
//
//   - each chunk has at most one fetch outstanding, whoever triggers it
//   - a fetch is retried with exponential backoff and then marked failed
//   - failed chunks stay failed until ResetFailed
//   - records are merged into an append-only store that drops duplicates
//
// Typical use:
//
//	sess := chunks.NewSession(src, chunks.SessionOptions{Layout: loader.DefaultLayout()})
//	defer sess.Close()
//	if _, err := sess.Start(ctx); err != nil {
//	    return err // chunks.ErrNoDataAvailable
//	}
//	res, err := sess.LoadAll(ctx)
package chunks
