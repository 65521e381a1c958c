package tissuemask

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CacheExt is the extension of cached mask files.
const CacheExt = ".tmask"

// Value types a cache file can declare. Only DTypeBool is accepted on load.
const (
	DTypeBool  byte = 1
	DTypeUint8 byte = 2
)

const (
	cacheMagic   = "TMSK"
	cacheVersion = 1
	tmpPrefix    = ".tmp-"
	headerSize   = 14

	// maxCacheCells bounds the cell count a header may declare.
	maxCacheCells = 1 << 30
)

// CacheName returns the cache file name for imageID.
func CacheName(imageID string) string {
	return imageID + "_tm" + CacheExt
}

// FindCached looks in dir for a cached mask for imageID. The exact cache name
// wins; otherwise the first file (by name) containing imageID as a whole
// token is used, so "slide1" never picks up "slide10_tm.tmask". A missing
// directory is a cache miss.
func FindCached(dir, imageID string) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read tissue mask directory: %w", err)
	}

	exact := CacheName(imageID)
	match := ""
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, tmpPrefix) || filepath.Ext(name) != CacheExt {
			continue
		}
		if name == exact {
			return filepath.Join(dir, name), true, nil
		}
		if match == "" && containsID(strings.TrimSuffix(name, CacheExt), imageID) {
			match = name
		}
	}

	if match == "" {
		return "", false, nil
	}
	return filepath.Join(dir, match), true, nil
}

// containsID reports whether id occurs in name without a letter or digit
// directly before or after it.
func containsID(name, id string) bool {
	if id == "" {
		return false
	}
	for start := 0; ; {
		i := strings.Index(name[start:], id)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(id)
		if (i == 0 || !isIDChar(name[i-1])) && (end == len(name) || !isIDChar(name[end])) {
			return true
		}
		start = i + 1
	}
}

func isIDChar(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// Save writes m to dir under CacheName(imageID). The file is written to a
// temporary name and renamed into place so readers never see a partial mask.
func Save(dir, imageID string, m *Mask) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating tissue mask directory: %w", err)
	}

	dest := filepath.Join(dir, CacheName(imageID))
	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("error creating temporary mask file: %w", err)
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriter(tmp)
	if err := Encode(bw, m); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("error writing mask file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("error syncing mask file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("error closing mask file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("error moving mask file into place: %w", err)
	}

	return dest, nil
}

// Load reads a cached mask. The returned mask's Level is -1 until the caller
// matches it against a pyramid. A file whose size disagrees with its header
// fails with ErrCorruptCache.
func Load(path string) (*Mask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tissue mask: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat tissue mask: %w", err)
	}

	br := bufio.NewReader(f)
	rows, cols, err := readHeader(br)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if want := int64(headerSize) + int64(rows)*int64(cols); info.Size() != want {
		return nil, fmt.Errorf("%s: %w: %d bytes, header declares %d", path, ErrCorruptCache, info.Size(), want)
	}

	m, err := readCells(br, rows, cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Encode writes m in the cache format: magic, version, dtype, rows, cols
// (little endian uint32) and one byte per cell.
func Encode(w io.Writer, m *Mask) error {
	cells := make([]byte, len(m.Data))
	for i, v := range m.Data {
		if v {
			cells[i] = 1
		}
	}
	return encodeRaw(w, DTypeBool, m.Rows, m.Cols, cells)
}

func encodeRaw(w io.Writer, dtype byte, rows, cols int, cells []byte) error {
	header := make([]byte, 0, headerSize)
	header = append(header, cacheMagic...)
	header = append(header, cacheVersion, dtype)
	header = binary.LittleEndian.AppendUint32(header, uint32(rows))
	header = binary.LittleEndian.AppendUint32(header, uint32(cols))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("error writing mask header: %w", err)
	}
	if _, err := w.Write(cells); err != nil {
		return fmt.Errorf("error writing mask data: %w", err)
	}
	return nil
}

// Decode reads a mask written by Encode. Masks whose dtype is not boolean,
// or whose cells hold values other than 0 and 1, fail with ErrNotBoolean.
// Headers declaring more cells than a cache file may hold fail with
// ErrCorruptCache.
func Decode(r io.Reader) (*Mask, error) {
	rows, cols, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	return readCells(r, rows, cols)
}

func readHeader(r io.Reader) (rows, cols int, err error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, 0, fmt.Errorf("%w: error reading mask header: %v", ErrCorruptCache, err)
	}
	if string(header[:4]) != cacheMagic {
		return 0, 0, fmt.Errorf("%w: not a tissue mask file", ErrCorruptCache)
	}
	if header[4] != cacheVersion {
		return 0, 0, fmt.Errorf("unsupported tissue mask version %d", header[4])
	}
	if header[5] != DTypeBool {
		return 0, 0, fmt.Errorf("%w: dtype %d", ErrNotBoolean, header[5])
	}

	r64 := uint64(binary.LittleEndian.Uint32(header[6:10]))
	c64 := uint64(binary.LittleEndian.Uint32(header[10:14]))
	if r64*c64 > maxCacheCells {
		return 0, 0, fmt.Errorf("%w: %d x %d cells", ErrCorruptCache, r64, c64)
	}
	return int(r64), int(c64), nil
}

func readCells(r io.Reader, rows, cols int) (*Mask, error) {
	cells := make([]byte, rows*cols)
	if _, err := io.ReadFull(r, cells); err != nil {
		return nil, fmt.Errorf("%w: error reading mask data: %v", ErrCorruptCache, err)
	}

	m := New(rows, cols, -1)
	for i, c := range cells {
		switch c {
		case 0:
		case 1:
			m.Data[i] = true
		default:
			return nil, fmt.Errorf("%w: cell %d holds %d", ErrNotBoolean, i, c)
		}
	}
	return m, nil
}
