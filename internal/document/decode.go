package document

import (
	"encoding/base64"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// File is one decoded upload.
type File struct {
	Name string
	Data []byte
}

// DecodeFiles decodes the upload wire format: a list of single-entry maps
// from display name to base64 content. Data URIs are accepted and supply an
// extension when the display name has none.
func DecodeFiles(raw []map[string]string) ([]File, error) {
	var files []File
	for i, entry := range raw {
		for name, value := range entry {
			data, ext, err := Decode(value)
			if err != nil {
				return nil, fmt.Errorf("document: files[%d] %q: %w", i, name, err)
			}
			if filepath.Ext(name) == "" && ext != "" {
				name += ext
			}
			files = append(files, File{Name: name, Data: data})
		}
	}
	return files, nil
}

// Decode decodes plain or data-URI base64 content. ext is derived from the
// data URI media type and is empty for plain base64.
func Decode(value string) (data []byte, ext string, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, "", fmt.Errorf("empty content")
	}
	if strings.HasPrefix(value, "data:") {
		header, payload, ok := strings.Cut(value, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, "", fmt.Errorf("unsupported data URI")
		}
		mediaType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
			ext = exts[0]
		}
		value = payload
	}

	data, err = base64.StdEncoding.DecodeString(value)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(value, "="))
	}
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty content")
	}
	return data, ext, nil
}
