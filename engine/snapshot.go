package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/gridstream/blobstore"
	"github.com/hupe1980/gridstream/codec"
	"github.com/hupe1980/gridstream/resource"
	"github.com/hupe1980/gridstream/schema"
)

// Compression selects the codec applied to persisted column segments.
type Compression string

const (
	// CompressionZstd is the default segment compression.
	CompressionZstd Compression = "zstd"
	// CompressionLZ4 trades ratio for speed.
	CompressionLZ4 Compression = "lz4"
	// CompressionNone stores segments raw.
	CompressionNone Compression = "none"
)

const manifestVersion = 1

// manifest is the self-describing header of a persisted array.
type manifest struct {
	Version     int            `json:"version"`
	Codec       string         `json:"codec"`
	Kind        string         `json:"kind"`
	Compression string         `json:"compression"`
	Dimensions  []manifestCol  `json:"dimensions"`
	Attributes  []manifestCol  `json:"attributes"`
	Fragments   []manifestFrag `json:"fragments"`
}

type manifestCol struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
}

type manifestFrag struct {
	TimestampStart uint64            `json:"ts_start"`
	TimestampEnd   uint64            `json:"ts_end"`
	Cells          int               `json:"cells"`
	Segments       map[string]string `json:"segments"`
}

// SaveArray persists an in-memory array under name in the given blob store:
// one compressed segment per fragment per column plus a manifest.
func SaveArray(ctx context.Context, store blobstore.BlobStore, name string, arr *MemArray, compression Compression) error {
	if compression == "" {
		compression = CompressionZstd
	}

	m := manifest{
		Version:     manifestVersion,
		Codec:       codec.Default.Name(),
		Kind:        arr.kind.String(),
		Compression: string(compression),
	}
	for _, d := range arr.schema.Dimensions() {
		m.Dimensions = append(m.Dimensions, manifestCol{Name: d.Name, Type: d.Type.String()})
	}
	for _, a := range arr.schema.Attributes() {
		m.Attributes = append(m.Attributes, manifestCol{Name: a.Name, Type: a.Type.String(), Nullable: a.Nullable})
	}

	for fi, frag := range arr.fragments() {
		mf := manifestFrag{
			TimestampStart: frag.tsStart,
			TimestampEnd:   frag.tsEnd,
			Cells:          frag.n,
			Segments:       make(map[string]string, len(frag.cols)),
		}

		for _, colName := range arr.schema.ColumnNames() {
			col, _ := arr.schema.Column(colName)
			raw := encodeSegment(col, frag.cols[colName])
			compressed, err := compress(compression, raw)
			if err != nil {
				return fmt.Errorf("engine: compress segment %q: %w", colName, err)
			}

			segName := path.Join(name, fmt.Sprintf("frag-%06d", fi), colName+".seg")
			if err := store.Put(ctx, segName, compressed); err != nil {
				return fmt.Errorf("engine: write segment %q: %w", segName, err)
			}
			mf.Segments[colName] = segName
		}

		m.Fragments = append(m.Fragments, mf)
	}

	encoded, err := codec.Default.Marshal(m)
	if err != nil {
		return fmt.Errorf("engine: encode manifest: %w", err)
	}
	return store.Put(ctx, path.Join(name, "manifest.json"), encoded)
}

// LoadArray opens a persisted array from a blob store. Segment reads go
// through the controller's IO limit when ctrl is non-nil.
func LoadArray(ctx context.Context, store blobstore.BlobStore, name string, ctrl *resource.Controller) (*MemArray, error) {
	raw, err := readBlob(ctx, store, path.Join(name, "manifest.json"), ctrl)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, err
	}

	var m manifest
	if err := (codec.JSON{}).Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("engine: decode manifest for %q: %w", name, err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("engine: unsupported manifest version %d", m.Version)
	}
	if _, ok := codec.ByName(m.Codec); !ok {
		return nil, fmt.Errorf("engine: unknown manifest codec %q", m.Codec)
	}

	s, err := schemaFromManifest(&m)
	if err != nil {
		return nil, err
	}

	kind := schema.KindSparse
	if m.Kind == schema.KindDense.String() {
		kind = schema.KindDense
	}
	arr := NewMemArray(s, kind)

	for _, mf := range m.Fragments {
		cols := make(map[string][]schema.Value, len(mf.Segments))
		for _, colName := range s.ColumnNames() {
			segName, ok := mf.Segments[colName]
			if !ok {
				return nil, fmt.Errorf("engine: manifest fragment missing segment for %q", colName)
			}

			compressed, err := readBlob(ctx, store, segName, ctrl)
			if err != nil {
				return nil, fmt.Errorf("engine: read segment %q: %w", segName, err)
			}
			raw, err := decompress(Compression(m.Compression), compressed)
			if err != nil {
				return nil, fmt.Errorf("engine: decompress segment %q: %w", segName, err)
			}

			col, _ := s.Column(colName)
			values, err := decodeSegment(col, raw)
			if err != nil {
				return nil, err
			}
			if len(values) != mf.Cells {
				return nil, fmt.Errorf("engine: segment %q has %d cells, manifest says %d", segName, len(values), mf.Cells)
			}
			cols[colName] = values
		}

		if err := arr.WriteFragmentAt(mf.TimestampStart, mf.TimestampEnd, cols); err != nil {
			return nil, err
		}
	}

	return arr, nil
}

func schemaFromManifest(m *manifest) (*schema.Schema, error) {
	dims := make([]schema.Dimension, 0, len(m.Dimensions))
	for _, d := range m.Dimensions {
		t, ok := schema.TypeByName(d.Type)
		if !ok {
			return nil, fmt.Errorf("engine: manifest dimension %q has unknown type %q", d.Name, d.Type)
		}
		dims = append(dims, schema.Dimension{Name: d.Name, Type: t})
	}

	attrs := make([]schema.Attribute, 0, len(m.Attributes))
	for _, a := range m.Attributes {
		t, ok := schema.TypeByName(a.Type)
		if !ok {
			return nil, fmt.Errorf("engine: manifest attribute %q has unknown type %q", a.Name, a.Type)
		}
		attrs = append(attrs, schema.Attribute{Name: a.Name, Type: t, Nullable: a.Nullable})
	}

	return schema.New(dims, attrs)
}

func readBlob(ctx context.Context, store blobstore.BlobStore, name string, ctrl *resource.Controller) ([]byte, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	return blobstore.ReadAll(blob, func(r io.Reader) io.Reader {
		return resource.NewRateLimitedReader(ctx, r, ctrl)
	})
}

func compress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("engine: unknown compression %q", c)
	}
}

func decompress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	case CompressionLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	default:
		return nil, fmt.Errorf("engine: unknown compression %q", c)
	}
}
