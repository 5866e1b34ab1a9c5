// Package artifacts stores converted dashboards as downloadable files.
package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/afero"

	"github.com/platformbuilds/dashbridge/internal/converter"
	"github.com/platformbuilds/dashbridge/internal/metrics"
	"github.com/platformbuilds/dashbridge/internal/models"
)

// Format selects which rendition of a stored dashboard to open.
type Format string

const (
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
)

var (
	ErrNotFound      = errors.New("artifact not found")
	ErrInvalidFileID = errors.New("invalid file id")
	ErrInvalidFormat = errors.New("invalid format")
)

// fileIDPattern admits uuid-like ids and rejects separators and dot segments.
var fileIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// ParseFormat maps a query value to a Format; empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", string(FormatJSON):
		return FormatJSON, nil
	case string(FormatNDJSON):
		return FormatNDJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
}

// Store writes <fileId>.json and <fileId>.ndjson side by side under a root
// directory of an afero filesystem.
type Store struct {
	fs   afero.Fs
	root string
}

// NewStore creates root on fs if needed.
func NewStore(fs afero.Fs, root string) (*Store, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir %s: %w", root, err)
	}
	return &Store{fs: fs, root: root}, nil
}

// NewOSStore stores artifacts on the local disk.
func NewOSStore(root string) (*Store, error) {
	return NewStore(afero.NewOsFs(), root)
}

// NewMemStore keeps artifacts in memory.
func NewMemStore() *Store {
	s, _ := NewStore(afero.NewMemMapFs(), "/artifacts")
	return s
}

func validateID(fileID string) error {
	if !fileIDPattern.MatchString(fileID) {
		return fmt.Errorf("%w: %q", ErrInvalidFileID, fileID)
	}
	return nil
}

func (s *Store) path(fileID string, f Format) string {
	return filepath.Join(s.root, fileID+"."+string(f))
}

// Write stores the pretty JSON and NDJSON renditions of d. Either both are
// written or neither is left behind.
func (s *Store) Write(fileID string, d *models.KibanaDashboard) error {
	if err := validateID(fileID); err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("no dashboard to write for %s", fileID)
	}

	var pretty bytes.Buffer
	enc := json.NewEncoder(&pretty)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode %s: %w", fileID, err)
	}

	line, err := converter.ToNDJSON(d)
	if err != nil {
		return fmt.Errorf("export ndjson %s: %w", fileID, err)
	}

	if err := afero.WriteFile(s.fs, s.path(fileID, FormatJSON), pretty.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fileID, err)
	}
	if err := afero.WriteFile(s.fs, s.path(fileID, FormatNDJSON), []byte(line), 0o644); err != nil {
		_ = s.fs.Remove(s.path(fileID, FormatJSON))
		return fmt.Errorf("write %s: %w", fileID, err)
	}
	metrics.ArtifactsWritten.WithLabelValues("output").Inc()
	return nil
}

// Open returns the stored rendition. The caller closes it.
func (s *Store) Open(fileID string, f Format) (io.ReadCloser, error) {
	if err := validateID(fileID); err != nil {
		return nil, err
	}
	if f != FormatJSON && f != FormatNDJSON {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, f)
	}
	file, err := s.fs.Open(s.path(fileID, f))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotFound, fileID, f)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fileID, err)
	}
	return file, nil
}

// Remove deletes both renditions. Missing files are not an error.
func (s *Store) Remove(fileID string) error {
	if err := validateID(fileID); err != nil {
		return err
	}
	for _, f := range []Format{FormatJSON, FormatNDJSON} {
		if err := s.fs.Remove(s.path(fileID, f)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", fileID, err)
		}
	}
	return nil
}

// DownloadName is the attachment filename offered to clients.
func DownloadName(fileID string, f Format) string {
	return "kibana_dashboard_" + fileID + "." + string(f)
}
