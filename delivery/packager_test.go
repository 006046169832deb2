package delivery_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/asset"
	"github.com/xraph/fulfillment/delivery"
	"github.com/xraph/fulfillment/id"
)

func fileHost(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			io.WriteString(w, "alpha") //nolint:errcheck // test server
		case "/b.pdf":
			io.WriteString(w, "bravo") //nolint:errcheck // test server
		case "/gone":
			http.Error(w, "expired", http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPackager(t *testing.T, scratch string) *delivery.Packager {
	t.Helper()
	return delivery.New(
		delivery.WithScratchDir(scratch),
		delivery.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestBundleSkipsFailedFilesAndCleansUp(t *testing.T) {
	srv := fileHost(t)
	scratch := t.TempDir()
	p := newPackager(t, scratch)

	files := []asset.FileDescriptor{
		{Name: "a.pdf", DownloadURL: srv.URL + "/a.pdf"},
		{Name: "missing.pdf", DownloadURL: srv.URL + "/gone"},
		{Name: "b.pdf", DownloadURL: srv.URL + "/b.pdf"},
	}

	a, err := p.Package(context.Background(), "42", files)
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if a.Kind != delivery.KindBundle || a.Files != 2 || a.Name != "42_bundle.zip" {
		t.Errorf("artifact = kind %s, files %d, name %q", a.Kind, a.Files, a.Name)
	}

	// Only the archive may remain before release.
	if left := dirEntries(t, scratch); len(left) != 1 || !strings.HasSuffix(left[0], ".zip") {
		t.Errorf("scratch before release = %v, want only the archive", left)
	} else if !strings.HasPrefix(left[0], a.BundleID.String()) {
		t.Errorf("archive %q not named after bundle %s", left[0], a.BundleID)
	}
	if a.BundleID.Prefix() != id.PrefixBundle {
		t.Errorf("bundle id = %q, want %s prefix", a.BundleID, id.PrefixBundle)
	}

	data, err := io.ReadAll(a.Body)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("archive unreadable: %v", err)
	}
	var got []string
	for _, f := range zr.File {
		got = append(got, f.Name)
	}
	sort.Strings(got)
	if len(got) != 2 || got[0] != "a.pdf" || got[1] != "b.pdf" {
		t.Errorf("archive entries = %v, want [a.pdf b.pdf]", got)
	}

	if left := dirEntries(t, scratch); len(left) != 0 {
		t.Errorf("scratch after release = %v, want empty", left)
	}
}

func TestBundleAllFailed(t *testing.T) {
	srv := fileHost(t)
	scratch := t.TempDir()
	p := newPackager(t, scratch)

	_, err := p.Package(context.Background(), "42", []asset.FileDescriptor{
		{Name: "x", DownloadURL: srv.URL + "/gone"},
		{Name: "y", DownloadURL: ""},
	})
	if !errors.Is(err, fulfillment.ErrNoFilesDelivered) {
		t.Fatalf("err = %v, want ErrNoFilesDelivered", err)
	}
	if left := dirEntries(t, scratch); len(left) != 0 {
		t.Errorf("scratch = %v, want empty", left)
	}
}

func TestBundleDeduplicatesNames(t *testing.T) {
	srv := fileHost(t)
	p := newPackager(t, t.TempDir())

	a, err := p.Package(context.Background(), "dup", []asset.FileDescriptor{
		{Name: "../a.pdf", DownloadURL: srv.URL + "/a.pdf"},
		{Name: "a.pdf", DownloadURL: srv.URL + "/b.pdf"},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Release() //nolint:errcheck // test

	data, _ := io.ReadAll(a.Body)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "a.pdf" || zr.File[1].Name != "a (2).pdf" {
		names := []string{}
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		t.Errorf("entries = %v", names)
	}
}

func TestStreamSingleFile(t *testing.T) {
	srv := fileHost(t)
	p := newPackager(t, t.TempDir())

	a, err := p.Package(context.Background(), "42", []asset.FileDescriptor{
		{Name: "a.pdf", DownloadURL: srv.URL + "/a.pdf"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if a.Kind != delivery.KindStream || a.ContentType != "application/pdf" || a.Name != "a.pdf" {
		t.Errorf("artifact = %+v", a)
	}

	rec := httptest.NewRecorder()
	if err := delivery.Serve(rec, httptest.NewRequest(http.MethodGet, "/api/download", nil), a); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if rec.Body.String() != "alpha" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename=a.pdf` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if err := a.Release(); err != nil {
		t.Errorf("second Release should be a no-op, got %v", err)
	}
}

func TestStreamUpstreamStatus(t *testing.T) {
	srv := fileHost(t)
	p := newPackager(t, t.TempDir())

	_, err := p.Package(context.Background(), "42", []asset.FileDescriptor{
		{Name: "gone.pdf", DownloadURL: srv.URL + "/gone"},
	})
	var ufe *fulfillment.UpstreamFetchError
	if !errors.As(err, &ufe) {
		t.Fatalf("err = %v, want *UpstreamFetchError", err)
	}
	if ufe.Status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", ufe.Status)
	}
}

func TestServeReleasesOnWriteFailure(t *testing.T) {
	srv := fileHost(t)
	scratch := t.TempDir()
	p := newPackager(t, scratch)

	bundle, err := p.Package(context.Background(), "x", []asset.FileDescriptor{
		{Name: "a.pdf", DownloadURL: srv.URL + "/a.pdf"},
		{Name: "b.pdf", DownloadURL: srv.URL + "/b.pdf"},
	})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/download", nil)
	if err := delivery.Serve(failingWriter{httptest.NewRecorder()}, req, bundle); err == nil {
		t.Fatal("expected write failure")
	}
	if left := dirEntries(t, scratch); len(left) != 0 {
		t.Errorf("archive left behind after failed serve: %v", left)
	}
}

func TestReleaseWithoutCleanup(t *testing.T) {
	a := &delivery.Artifact{Name: "f.txt", Size: -1, Body: strings.NewReader("data")}
	if err := a.Release(); err != nil {
		t.Errorf("Release = %v", err)
	}
}

type failingWriter struct{ *httptest.ResponseRecorder }

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("client went away") }

// trickleHost sends chunks every interval, count times.
func trickleHost(t *testing.T, chunk string, count int, interval time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		for i := 0; i < count; i++ {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(interval):
			}
			io.WriteString(w, chunk) //nolint:errcheck // test server
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamOutlivesTimeoutWhileDataFlows(t *testing.T) {
	srv := trickleHost(t, "chunk", 6, 100*time.Millisecond)
	p := delivery.New(
		delivery.WithDownloadTimeout(250*time.Millisecond),
		delivery.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	a, err := p.Stream(context.Background(), asset.FileDescriptor{Name: "slow.bin", DownloadURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Release() //nolint:errcheck // test cleanup

	data, err := io.ReadAll(a.Body)
	if err != nil {
		t.Fatalf("read %d bytes: %v", len(data), err)
	}
	if want := strings.Repeat("chunk", 6); string(data) != want {
		t.Errorf("body = %q, want %q", data, want)
	}
}

func TestStreamStalledUpstreamFails(t *testing.T) {
	srv := trickleHost(t, "chunk", 2, 400*time.Millisecond)
	p := delivery.New(
		delivery.WithDownloadTimeout(100*time.Millisecond),
		delivery.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	a, err := p.Stream(context.Background(), asset.FileDescriptor{Name: "stuck.bin", DownloadURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Release() //nolint:errcheck // test cleanup

	if _, err := io.ReadAll(a.Body); err == nil {
		t.Fatal("expected the stalled body to fail")
	}
}

func TestBundleOutlivesTimeoutWhileDataFlows(t *testing.T) {
	srv := trickleHost(t, "x", 4, 100*time.Millisecond)
	p := delivery.New(
		delivery.WithScratchDir(t.TempDir()),
		delivery.WithDownloadTimeout(250*time.Millisecond),
		delivery.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	a, err := p.Bundle(context.Background(), "7", []asset.FileDescriptor{
		{Name: "one.bin", DownloadURL: srv.URL + "/one"},
		{Name: "two.bin", DownloadURL: srv.URL + "/two"},
	})
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	defer a.Release() //nolint:errcheck // test cleanup
	if a.Files != 2 {
		t.Errorf("files = %d, want 2", a.Files)
	}
}
