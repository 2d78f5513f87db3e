// Package watch keeps the capability registry in step with an endpoints
// file, so specialists can be added or removed without a restart.
package watch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// File is the on-disk layout of an endpoints file.
type File struct {
	Endpoints []models.Endpoint `yaml:"endpoints"`
}

// LoadFile reads and normalizes the endpoints in path. A missing file
// yields no endpoints.
func LoadFile(path string) ([]models.Endpoint, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read endpoints file: %w", err)
	}
	return Parse(data)
}

// Parse decodes an endpoints document. Unknown fields are rejected and
// every endpoint needs a url and a capability_id.
func Parse(data []byte) ([]models.Endpoint, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse endpoints file: %w", err)
	}

	seen := make(map[string]bool, len(f.Endpoints))
	out := make([]models.Endpoint, 0, len(f.Endpoints))
	for i, ep := range f.Endpoints {
		ep = ep.Normalize()
		if ep.URL == "" || ep.CapabilityID == "" {
			return nil, fmt.Errorf("endpoints[%d]: url and capability_id are required", i)
		}
		if seen[ep.CapabilityID] {
			return nil, fmt.Errorf("endpoints[%d]: duplicate capability_id %q", i, ep.CapabilityID)
		}
		seen[ep.CapabilityID] = true
		out = append(out, ep)
	}
	return out, nil
}

// Marshal renders endpoints in the file layout.
func Marshal(endpoints []models.Endpoint) ([]byte, error) {
	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(File{Endpoints: endpoints}); err != nil {
		return nil, fmt.Errorf("encode endpoints: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}
