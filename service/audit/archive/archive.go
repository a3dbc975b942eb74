// Package archive persists audit entries through the abstract file storage so
// that the trail survives process restarts and can be exported.  Entries are
// written once and never rewritten, one JSON document per entry partitioned
// by day.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/viant/guardrail/service/audit"
)

// Archive writes audit entries under baseURL/<yyyy-mm-dd>/<id>.json.
type Archive struct {
	fs      afs.Service
	baseURL string
}

// New creates an archive rooted at baseURL (any scheme supported by afs).
func New(fs afs.Service, baseURL string) (*Archive, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("archive: base URL cannot be empty")
	}
	return &Archive{fs: fs, baseURL: baseURL}, nil
}

// Put persists a single entry.  Existing documents are never overwritten -
// an entry id collision indicates a caller bug and surfaces as an error.
func (a *Archive) Put(ctx context.Context, entry *audit.Entry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("archive: entry without id")
	}
	URL := a.entryURL(entry)
	if exists, _ := a.fs.Exists(ctx, URL); exists {
		return fmt.Errorf("archive: entry %s already archived", entry.ID)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: failed to marshal entry %s: %w", entry.ID, err)
	}
	return a.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data))
}

// List loads all entries archived on the supplied day (format yyyy-mm-dd).
func (a *Archive) List(ctx context.Context, day string) ([]*audit.Entry, error) {
	parent := url.Join(a.baseURL, day)
	if exists, _ := a.fs.Exists(ctx, parent); !exists {
		return nil, nil
	}
	objects, err := a.fs.List(ctx, parent)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to list %s: %w", parent, err)
	}
	var entries []*audit.Entry
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := a.fs.DownloadWithURL(ctx, object.URL())
		if err != nil {
			return nil, fmt.Errorf("archive: failed to read %s: %w", object.URL(), err)
		}
		entry := &audit.Entry{}
		if err := json.Unmarshal(data, entry); err != nil {
			return nil, fmt.Errorf("archive: failed to unmarshal %s: %w", object.URL(), err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (a *Archive) entryURL(entry *audit.Entry) string {
	day := entry.CreatedAt.UTC().Format("2006-01-02")
	return url.Join(a.baseURL, day, entry.ID+".json")
}

var _ audit.Archiver = (*Archive)(nil)
