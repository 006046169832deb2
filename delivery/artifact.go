package delivery

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"sync"

	"github.com/xraph/fulfillment/id"
)

// Kind tells a streamed single file from a bundled archive.
type Kind string

const (
	KindStream Kind = "stream"
	KindBundle Kind = "bundle"
)

// Artifact is an HTTP-deliverable download. The caller owns it and must call
// Release exactly once it is done, on every path; Serve does that itself.
type Artifact struct {
	Kind        Kind
	Name        string
	ContentType string
	// Size is -1 when the upstream did not announce a length.
	Size  int64
	Files int
	Body  io.Reader
	// BundleID identifies a bundled archive; it is nil for streams.
	BundleID id.BundleID

	once    sync.Once
	release func() error
	err     error
}

func newArtifact(kind Kind, name, contentType string, size int64, files int, body io.Reader, release func() error) *Artifact {
	return &Artifact{
		Kind:        kind,
		Name:        name,
		ContentType: contentType,
		Size:        size,
		Files:       files,
		Body:        body,
		release:     release,
	}
}

// Release frees the upstream connection or deletes the archive file. It is
// safe to call more than once; later calls return the first result.
func (a *Artifact) Release() error {
	a.once.Do(func() {
		if a.release != nil {
			a.err = a.release()
		}
	})
	return a.err
}

// Serve writes the artifact as an attachment and releases it, whether the
// copy completes, fails, or the client goes away.
func Serve(w http.ResponseWriter, r *http.Request, a *Artifact) error {
	defer a.Release() //nolint:errcheck // release errors are logged by the packager

	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	if a.Size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(a.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := io.Copy(w, a.Body); err != nil {
		if ctxErr := r.Context().Err(); ctxErr != nil {
			return errors.Join(ctxErr, err)
		}
		return err
	}
	return nil
}
