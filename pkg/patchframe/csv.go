package patchframe

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Asish-Kumar/WholeSlideImageSampler/internal/models"
)

func saveCSV(dest string, f *Frame) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := WriteCSV(tmp, f); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("error moving patch frame into place: %w", err)
	}
	return nil
}

// WriteCSV writes the frame as CSV with a header row.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range f.Records {
		row := []string{
			r.ID,
			strconv.Itoa(r.Col),
			strconv.Itoa(r.Row),
			strconv.Itoa(int(r.Class)),
			strconv.Itoa(r.Level),
			strconv.Itoa(r.Size),
			r.Parent,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write patch %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a frame written by WriteCSV. The image id is not stored in
// CSV and is left for the caller to set.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if strings.Join(header, ",") != strings.Join(Columns, ",") {
		return nil, fmt.Errorf("unexpected patch frame header %v", header)
	}

	f := &Frame{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var ints [5]int
		for i, s := range row[1:6] {
			if ints[i], err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q", line, Columns[i+1], s)
			}
		}
		if ints[2] < 0 || ints[2] > 255 {
			return nil, fmt.Errorf("line %d: class %d out of range", line, ints[2])
		}

		f.Append(models.PatchRecord{
			ID:     row[0],
			Col:    ints[0],
			Row:    ints[1],
			Class:  uint8(ints[2]),
			Level:  ints[3],
			Size:   ints[4],
			Parent: row[6],
		})
	}
	return f, nil
}

func loadCSV(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open patch frame: %w", err)
	}
	defer file.Close()

	f, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	f.ImageID = strings.TrimSuffix(filepath.Base(path), "_patchframe.csv")
	return f, nil
}
