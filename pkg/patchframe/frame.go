// Package patchframe stores the ordered table of accepted patches for one
// image ("patch frame") as a single SQLite or CSV file.
package patchframe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Asish-Kumar/WholeSlideImageSampler/internal/models"
)

// Format selects the on-disk representation of a frame.
type Format string

const (
	FormatSQLite Format = "sqlite"
	FormatCSV    Format = "csv"
)

// Columns is the column order of a persisted frame.
var Columns = []string{"id", "w", "h", "class", "level", "size", "parent"}

// ErrUnknownFormat is returned for unsupported formats or file extensions.
var ErrUnknownFormat = errors.New("unknown patch frame format")

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatSQLite, "db":
		return FormatSQLite, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Ext returns the file extension used for the format.
func (f Format) Ext() string {
	if f == FormatCSV {
		return ".csv"
	}
	return ".db"
}

// Frame is the append-only table of accepted patches for one image.
type Frame struct {
	ImageID string
	Records []models.PatchRecord
}

// NewFrame returns an empty frame for imageID.
func NewFrame(imageID string) *Frame {
	return &Frame{ImageID: imageID}
}

// Append adds a record at the end of the frame.
func (f *Frame) Append(rec models.PatchRecord) {
	f.Records = append(f.Records, rec)
}

// Len returns the number of records.
func (f *Frame) Len() int {
	return len(f.Records)
}

// CountByClass returns the number of records per class label.
func (f *Frame) CountByClass() map[uint8]int {
	counts := make(map[uint8]int)
	for _, r := range f.Records {
		counts[r.Class]++
	}
	return counts
}

// SessionMeta describes the sampling session that produced a frame. Only the
// SQLite format keeps it.
type SessionMeta struct {
	Seed          int64
	Magnification float64
	PatchSize     int
	MaxPerClass   int
	Rejected      int
}

// FileName returns the file name of imageID's frame in format.
func FileName(imageID string, format Format) string {
	return imageID + "_patchframe" + format.Ext()
}

// Save writes f to dir, creating dir if needed, and returns the file path.
// An existing frame for the same image is replaced.
func Save(dir string, f *Frame, format Format, meta SessionMeta) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating patch frame directory: %w", err)
	}
	dest := filepath.Join(dir, FileName(f.ImageID, format))

	var err error
	switch format {
	case FormatSQLite:
		err = saveSQLite(dest, f, meta)
	case FormatCSV:
		err = saveCSV(dest, f)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return "", err
	}
	return dest, nil
}

// Load reads a frame written by Save. The format follows the file extension.
func Load(path string) (*Frame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite":
		return loadSQLite(path)
	case ".csv":
		return loadCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}
