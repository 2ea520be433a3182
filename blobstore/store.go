// Package blobstore abstracts access to the immutable blobs a persisted
// array consists of: its manifest and its compressed column segments.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for reading and writing immutable data blobs.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Put writes a blob atomically. Blobs are write-once; overwriting an
	// existing name is implementation-defined.
	Put(ctx context.Context, name string, data []byte) error
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// ReadAll reads the entire blob through r, which may wrap the blob's reader
// with rate limiting.
func ReadAll(b Blob, wrap func(io.Reader) io.Reader) ([]byte, error) {
	r := io.Reader(io.NewSectionReader(b, 0, b.Size()))
	if wrap != nil {
		r = wrap(r)
	}
	data := make([]byte, 0, b.Size())
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		data = append(data, buf[:n]...)
		if err == io.EOF {
			return data, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
