package zipx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// File is one member to be written into an archive.
type File struct {
	Path string
	Data []byte
	Mode os.FileMode
}

const maxEntryBytes = int64(100 * 1024 * 1024)

// Fixed member timestamp so byte-for-byte re-encoding of unchanged
// input is stable.
var deterministicTimestamp = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// WriteDeterministic writes members in the given order with fixed
// timestamps and modes, producing identical bytes for identical input.
func WriteDeterministic(writer io.Writer, files []File) error {
	zipWriter := zip.NewWriter(writer)
	for _, file := range files {
		header := &zip.FileHeader{
			Name:     filepath.ToSlash(file.Path),
			Method:   zip.Deflate,
			Modified: deterministicTimestamp,
		}
		mode := file.Mode
		if mode == 0 {
			mode = 0o644
		}
		header.SetMode(mode)
		entryWriter, err := zipWriter.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("create zip entry %s: %w", file.Path, err)
		}
		if _, err := entryWriter.Write(file.Data); err != nil {
			return fmt.Errorf("write zip entry %s: %w", file.Path, err)
		}
	}
	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// OpenBytes opens an in-memory archive for reading.
func OpenBytes(data []byte) (*zip.Reader, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	return reader, nil
}

// FindFile locates a member by slash-normalized path.
func FindFile(files []*zip.File, name string) (*zip.File, bool) {
	for _, zipFile := range files {
		if filepath.ToSlash(zipFile.Name) == name {
			return zipFile, true
		}
	}
	return nil, false
}

// ReadFile reads one member fully, capped to keep hostile archives from
// exhausting memory.
func ReadFile(zipFile *zip.File) ([]byte, error) {
	if int64(zipFile.UncompressedSize64) > maxEntryBytes {
		return nil, fmt.Errorf("zip entry too large: %d", zipFile.UncompressedSize64)
	}
	reader, err := zipFile.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = reader.Close()
	}()
	limitedReader := io.LimitReader(reader, maxEntryBytes+1)
	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxEntryBytes {
		return nil, fmt.Errorf("zip entry exceeds max size")
	}
	return data, nil
}
