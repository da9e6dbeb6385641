package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"market-surplus/models"
)

// YAMLWriter exports result bundles as a YAML document stream, one document
// per bundle.
type YAMLWriter struct {
	mu      sync.Mutex
	file    *os.File
	encoder *yaml.Encoder
}

// NewYAMLWriter creates (or truncates) the file at path.
func NewYAMLWriter(path string) (*YAMLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("yaml: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("yaml: create file %q: %w", path, err)
	}

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)

	return &YAMLWriter{file: f, encoder: enc}, nil
}

func (y *YAMLWriter) Write(bundles []*models.ResultBundle) error {
	y.mu.Lock()
	defer y.mu.Unlock()

	for _, b := range bundles {
		if err := y.encoder.Encode(b); err != nil {
			return fmt.Errorf("yaml: encode %s: %w", b.Dataset, err)
		}
	}
	return nil
}

func (y *YAMLWriter) Close() error {
	if err := y.encoder.Close(); err != nil {
		_ = y.file.Close()
		return fmt.Errorf("yaml: close encoder: %w", err)
	}
	return y.file.Close()
}

// ReadBundlesYAML decodes every document written by YAMLWriter.
func ReadBundlesYAML(r io.Reader) ([]*models.ResultBundle, error) {
	dec := yaml.NewDecoder(r)

	var bundles []*models.ResultBundle
	for {
		b := &models.ResultBundle{}
		err := dec.Decode(b)
		if err == io.EOF {
			return bundles, nil
		}
		if err != nil {
			return nil, fmt.Errorf("yaml: decode: %w", err)
		}
		bundles = append(bundles, b)
	}
}

// NewBundleWriter picks the export backend for format "csv" or "yaml".
func NewBundleWriter(format, path string) (BundleWriter, error) {
	switch format {
	case "", "csv":
		w, err := NewCSVWriter(path)
		if err != nil {
			return nil, err
		}
		return w, nil
	case "yaml", "yml":
		w, err := NewYAMLWriter(path)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	return nil, fmt.Errorf("export: unsupported format %q", format)
}
