// Package archive unpacks the zip bundles returned by local-processing
// uploads and archive downloads.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// maxEntrySize bounds a single decompressed entry.
const maxEntrySize = 512 << 20

// Entry is one named file of an archive.
type Entry struct {
	Name string
	Data []byte
}

// Unpack returns the regular files of a zip archive, flattened to their
// base names. Directory entries and resource-fork junk are skipped; a
// later entry with an already seen name is dropped.
func Unpack(data []byte) ([]Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid archive: %w", err)
	}

	seen := make(map[string]bool)
	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || skipEntry(f.Name) {
			continue
		}
		name := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
		if seen[name] {
			continue
		}

		content, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		seen[name] = true
		entries = append(entries, Entry{Name: name, Data: content})
	}
	return entries, nil
}

func skipEntry(name string) bool {
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), "._")
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	if len(content) > maxEntrySize {
		return nil, fmt.Errorf("entry %s exceeds %d bytes", f.Name, maxEntrySize)
	}
	return content, nil
}

// Build writes entries into a zip archive. Used for test fixtures and the
// download command's re-packing of cached stems.
func Build(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
