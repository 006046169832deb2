// Package delivery turns resolved file descriptors into downloads. One file
// is streamed straight from the file host; several are fetched into a
// private scratch directory and zipped into a single archive. Scratch files,
// archives and upstream connections are released on every exit path.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/asset"
	"github.com/xraph/fulfillment/id"
)

// DefaultDownloadTimeout bounds how long an upstream retrieval may wait for
// response headers or for the next chunk of body. A transfer that keeps
// making progress is never cut off.
const DefaultDownloadTimeout = 60 * time.Second

var errNoDownloadURL = errors.New("no download url")

// Packager builds download artifacts.
type Packager struct {
	client     *http.Client
	scratchDir string
	timeout    time.Duration
	logger     *slog.Logger
	hooks      Hooks
}

// Hooks observe packaging outcomes. Nil fields are skipped.
type Hooks struct {
	FileFailed func(ref string, f asset.FileDescriptor, err error)
	Packaged   func(ref string, a *Artifact, elapsed time.Duration)
}

// Option configures a Packager.
type Option func(*Packager)

// WithHTTPClient sets the client used to fetch files.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Packager) { p.client = c }
}

// WithScratchDir sets the parent directory for scratch files and archives.
// Defaults to os.TempDir().
func WithScratchDir(dir string) Option {
	return func(p *Packager) { p.scratchDir = dir }
}

// WithDownloadTimeout sets the stall bound for upstream retrievals.
func WithDownloadTimeout(d time.Duration) Option {
	return func(p *Packager) { p.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Packager) { p.logger = logger }
}

// WithHooks installs packaging observers.
func WithHooks(h Hooks) Option {
	return func(p *Packager) { p.hooks = h }
}

// New creates a Packager.
func New(opts ...Option) *Packager {
	p := &Packager{
		client:  http.DefaultClient,
		timeout: DefaultDownloadTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.scratchDir == "" {
		p.scratchDir = os.TempDir()
	}
	return p
}

// Package streams a single file or bundles several. ref names the bundle.
func (p *Packager) Package(ctx context.Context, ref string, files []asset.FileDescriptor) (*Artifact, error) {
	start := time.Now()

	var (
		a   *Artifact
		err error
	)
	switch len(files) {
	case 0:
		return nil, fmt.Errorf("%w: nothing to package for %q", fulfillment.ErrNotFound, ref)
	case 1:
		a, err = p.Stream(ctx, files[0])
	default:
		a, err = p.Bundle(ctx, ref, files)
	}
	if err != nil {
		return nil, err
	}

	if p.hooks.Packaged != nil {
		p.hooks.Packaged(ref, a, time.Since(start))
	}
	return a, nil
}

// Stream opens the file's download URL and returns the live body. The body
// stays open until Release; only upstream stalls are timed out.
func (p *Packager) Stream(ctx context.Context, f asset.FileDescriptor) (*Artifact, error) {
	ctx, cancel := context.WithCancel(ctx)
	stall := time.AfterFunc(p.timeout, cancel)

	resp, err := p.fetch(ctx, f)
	if err != nil || !stall.Stop() {
		if err == nil {
			resp.Body.Close() //nolint:errcheck // headers arrived after the deadline
			err = &fulfillment.UpstreamFetchError{Status: http.StatusBadGateway, File: f.Name, Err: context.DeadlineExceeded}
		}
		cancel()
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeFor(f)
	}

	body := &stallReader{r: resp.Body, timer: stall, timeout: p.timeout}
	return newArtifact(KindStream, fileName(f, 0), contentType, resp.ContentLength, 1, body, func() error {
		defer cancel()
		stall.Stop()
		return resp.Body.Close()
	}), nil
}

// Bundle fetches every file into a scratch directory and zips the ones that
// arrived. Files that fail are logged and left out; the bundle fails only
// when none arrived.
func (p *Packager) Bundle(ctx context.Context, ref string, files []asset.FileDescriptor) (*Artifact, error) {
	bundleID := id.NewBundleID()
	scratch, err := os.MkdirTemp(p.scratchDir, bundleID.String()+"-*")
	if err != nil {
		return nil, fmt.Errorf("fulfillment/delivery: create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			p.logger.Error("delivery: remove scratch dir", "dir", scratch, "error", err)
		}
	}()

	var (
		fetched []fetchedFile
		failed  fulfillment.MultiError
		names   = newNameSet()
	)
	for i, f := range files {
		path := filepath.Join(scratch, strconv.Itoa(i))
		if err := p.download(ctx, f, path); err != nil {
			p.logger.Warn("delivery: skipping file",
				"bundle_id", bundleID.String(),
				"reference", ref,
				"file", f.Name,
				"error", err,
			)
			if p.hooks.FileFailed != nil {
				p.hooks.FileFailed(ref, f, err)
			}
			failed.Add(err)
			continue
		}
		fetched = append(fetched, fetchedFile{path: path, name: names.unique(fileName(f, i))})
	}

	if len(fetched) == 0 {
		return nil, fmt.Errorf("%w: %d of %d files failed: %w",
			fulfillment.ErrNoFilesDelivered, len(failed.Errors), len(files), failed)
	}

	archive, size, err := p.zip(bundleID, fetched)
	if err != nil {
		return nil, err
	}

	p.logger.Info("delivery: bundle ready",
		"bundle_id", bundleID.String(),
		"reference", ref,
		"files", len(fetched),
		"skipped", len(failed.Errors),
		"bytes", size,
	)

	path := archive.Name()
	a := newArtifact(KindBundle, bundleName(ref), "application/zip", size, len(fetched), archive, func() error {
		closeErr := archive.Close()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return closeErr
	})
	a.BundleID = bundleID
	return a, nil
}

type fetchedFile struct {
	path string
	name string
}

// zip writes fetched into a new archive under the scratch root and rewinds
// it for reading. The archive is removed if anything fails.
func (p *Packager) zip(bundleID id.BundleID, fetched []fetchedFile) (_ *os.File, _ int64, err error) {
	archive, err := os.CreateTemp(p.scratchDir, bundleID.String()+"-*.zip")
	if err != nil {
		return nil, 0, fmt.Errorf("fulfillment/delivery: create archive: %w", err)
	}
	defer func() {
		if err != nil {
			archive.Close()           //nolint:errcheck // already failing
			os.Remove(archive.Name()) //nolint:errcheck // already failing
		}
	}()

	zw := zip.NewWriter(archive)
	for _, f := range fetched {
		if err := addToZip(zw, f); err != nil {
			return nil, 0, fmt.Errorf("fulfillment/delivery: add %s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, 0, fmt.Errorf("fulfillment/delivery: finish archive: %w", err)
	}

	size, err := archive.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, err
	}
	if _, err := archive.Seek(0, io.SeekStart); err != nil {
		return nil, 0, err
	}
	return archive, size, nil
}

func addToZip(zw *zip.Writer, f fetchedFile) error {
	src, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     f.name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

// download streams one file to path, failing if the upstream stalls.
func (p *Packager) download(ctx context.Context, f asset.FileDescriptor, path string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stall := time.AfterFunc(p.timeout, cancel)
	defer stall.Stop()

	resp, err := p.fetch(ctx, f)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if !stall.Stop() {
		return &fulfillment.UpstreamFetchError{Status: http.StatusBadGateway, File: f.Name, Err: context.DeadlineExceeded}
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	body := &stallReader{r: resp.Body, timer: stall, timeout: p.timeout}
	if _, err := io.Copy(out, body); err != nil {
		out.Close() //nolint:errcheck // already failing
		return &fulfillment.UpstreamFetchError{Status: http.StatusBadGateway, File: f.Name, Err: err}
	}
	return out.Close()
}

// stallReader arms timer for the duration of each upstream Read, so time
// spent by the consumer between reads is not counted.
type stallReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (s *stallReader) Read(b []byte) (int, error) {
	s.timer.Reset(s.timeout)
	n, err := s.r.Read(b)
	s.timer.Stop()
	return n, err
}

// fetch issues the GET and maps failures to *UpstreamFetchError. On success
// the caller owns resp.Body.
func (p *Packager) fetch(ctx context.Context, f asset.FileDescriptor) (*http.Response, error) {
	if f.DownloadURL == "" {
		return nil, &fulfillment.UpstreamFetchError{
			Status: http.StatusBadGateway,
			File:   f.Name,
			Err:    errNoDownloadURL,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.DownloadURL, nil)
	if err != nil {
		return nil, &fulfillment.UpstreamFetchError{Status: http.StatusBadGateway, File: f.Name, Err: err}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &fulfillment.UpstreamFetchError{Status: http.StatusBadGateway, File: f.Name, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10)) //nolint:errcheck // draining for reuse
		resp.Body.Close()                                      //nolint:errcheck // status already decides
		return nil, &fulfillment.UpstreamFetchError{Status: resp.StatusCode, File: f.Name}
	}
	return resp, nil
}

// ──────────────────────────────────────────────────
// Names
// ──────────────────────────────────────────────────

// fileName returns a safe base name for f.
func fileName(f asset.FileDescriptor, i int) string {
	name := sanitize(f.Name)
	if name == "" {
		name = "file-" + strconv.Itoa(i+1)
		if ext := strings.TrimPrefix(f.Extension, "."); ext != "" {
			name += "." + ext
		}
	}
	return name
}

func bundleName(ref string) string {
	name := sanitize(ref)
	if name == "" {
		name = "order"
	}
	return name + "_bundle.zip"
}

func sanitize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

func contentTypeFor(f asset.FileDescriptor) string {
	ext := filepath.Ext(f.Name)
	if ext == "" && f.Extension != "" {
		ext = "." + strings.TrimPrefix(f.Extension, ".")
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

type nameSet map[string]int

func newNameSet() nameSet { return nameSet{} }

// unique appends " (n)" before the extension for repeated names.
func (s nameSet) unique(name string) string {
	key := strings.ToLower(name)
	n := s[key]
	s[key] = n + 1
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	candidate := fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n+1, ext)
	if _, taken := s[strings.ToLower(candidate)]; taken {
		return s.unique(candidate)
	}
	s[strings.ToLower(candidate)] = 1
	return candidate
}
