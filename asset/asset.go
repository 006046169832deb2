// Package asset describes downloadable files as exposed by the provider.
// Descriptors are fetched per request and never cached: download URLs are
// short-lived signed links.
package asset

import "strings"

// Status is the publication state of a file.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// FileDescriptor is a downloadable file belonging to a product or variant.
type FileDescriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Extension   string `json:"extension,omitempty"`
	Size        int64  `json:"size"`
	Status      Status `json:"status"`
	TestMode    bool   `json:"test_mode"`
	DownloadURL string `json:"download_url,omitempty"`
	VariantID   string `json:"variant_id,omitempty"`
	ProductID   string `json:"product_id,omitempty"`
}

// IsDraft reports whether the file is unpublished.
func (f FileDescriptor) IsDraft() bool {
	return Status(strings.ToLower(string(f.Status))) == StatusDraft
}

// Names returns the file names in order.
func Names(files []FileDescriptor) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}

// AnyTestMode reports whether any descriptor is in test mode.
func AnyTestMode(files []FileDescriptor) bool {
	for _, f := range files {
		if f.TestMode {
			return true
		}
	}
	return false
}

// Drafts returns the names of draft descriptors.
func Drafts(files []FileDescriptor) []string {
	var out []string
	for _, f := range files {
		if f.IsDraft() {
			out = append(out, f.Name)
		}
	}
	return out
}
