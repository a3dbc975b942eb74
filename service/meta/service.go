// Package meta loads declarative engine configuration from any location the
// abstract file storage understands (file, s3, gs, mem, …), expanding
// ${env.KEY} expressions before decoding.
package meta

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Service loads configuration documents.
type Service struct {
	fs      afs.Service
	baseURL string
}

// New creates a meta service.  baseURL may be empty, in which case Load
// expects absolute URLs.
func New(fs afs.Service, baseURL string) *Service {
	return &Service{fs: fs, baseURL: baseURL}
}

// Load reads the YAML document at URI (resolved against baseURL when
// relative), expands ${env.KEY} expressions and decodes it into target.
func (s *Service) Load(ctx context.Context, URI string, target interface{}) error {
	URL := s.resolve(URI)
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return fmt.Errorf("meta: failed to load %s: %w", URL, err)
	}
	expanded := expandEnvExpr(string(data))
	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("meta: failed to decode %s: %w", URL, err)
	}
	return nil
}

func (s *Service) resolve(URI string) string {
	if s.baseURL == "" || strings.Contains(URI, "://") || strings.HasPrefix(URI, "/") {
		return URI
	}
	return strings.TrimSuffix(s.baseURL, "/") + "/" + URI
}
