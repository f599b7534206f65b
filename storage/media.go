// Package storage writes post media to blob storage and returns public URLs.
package storage

import (
	"bytes"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// Media is a selected file that has not been uploaded yet.
type Media interface {
	Open() (io.ReadCloser, error)
	// Name is the original file name, used only for its extension.
	Name() string
}

// FileMedia is a file on local disk.
type FileMedia struct {
	Path string
}

func (m FileMedia) Open() (io.ReadCloser, error) { return os.Open(m.Path) }
func (m FileMedia) Name() string                 { return filepath.Base(m.Path) }

// BytesMedia is media already held in memory.
type BytesMedia struct {
	Filename string
	Data     []byte
}

func (m BytesMedia) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.Data)), nil
}
func (m BytesMedia) Name() string { return m.Filename }

// MultipartMedia is a file part of a multipart form.
type MultipartMedia struct {
	Header *multipart.FileHeader
}

func (m MultipartMedia) Open() (io.ReadCloser, error) { return m.Header.Open() }
func (m MultipartMedia) Name() string                 { return m.Header.Filename }
