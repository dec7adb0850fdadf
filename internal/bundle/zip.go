// Package bundle builds the flat zip archive returned for one job.
package bundle

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"path"
	"strings"
)

// File is one entry to be written into the archive.
type File struct {
	Name string
	Data []byte
}

// Build writes every file into a single flat zip at maximum compression.
// Name hints never create subdirectories; only the leaf name is used.
// Colliding names get a deterministic numeric suffix before the extension.
func Build(files []File) ([]byte, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to bundle")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	seen := make(map[string]int, len(files))
	for _, f := range files {
		name := uniqueName(path.Base(f.Name), seen)
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive entry %s: %w", name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("failed to write archive entry %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

func uniqueName(name string, seen map[string]int) string {
	if name == "" || name == "." || name == "/" {
		name = "output.bin"
	}
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s-%d%s", stem, n+1, ext)
}

// IsZip reports whether the data starts with a zip local-file signature.
func IsZip(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte("PK\x03\x04"))
}
