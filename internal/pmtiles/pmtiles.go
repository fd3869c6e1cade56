// Package pmtiles writes single-directory PMTiles v3 archives.
//
// Only the writer half of the format is here, plus header parsing for
// checking what was written. Archives hold one scene, small enough that
// every tile fits in the root directory.
//
// Format: https://github.com/protomaps/PMTiles/blob/main/spec/v3/spec.md
package pmtiles

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/klauspost/compress/gzip"
	"github.com/paulmach/orb"
)

// Compression is the compression algorithm applied to tiles and directories.
type Compression uint8

const (
	UnknownCompression Compression = 0
	NoCompression      Compression = 1
	Gzip               Compression = 2
)

// TileType is the format of individual tile contents.
type TileType uint8

const (
	UnknownTileType TileType = 0
	Mvt             TileType = 1
)

// HeaderLen is the fixed size of the binary header.
const HeaderLen = 127

const magic = "PMTiles"

// ErrNotArchive is returned by ReadHeader for data without the magic.
var ErrNotArchive = errors.New("not a PMTiles archive")

// Header is the subset of the v3 header the writer fills in.
type Header struct {
	RootOffset     uint64
	RootLength     uint64
	MetadataOffset uint64
	MetadataLength uint64
	TileDataOffset uint64
	TileDataLength uint64
	Tiles          uint64
	Contents       uint64

	InternalCompression Compression
	TileCompression     Compression
	TileType            TileType
	MinZoom             uint8
	MaxZoom             uint8
	Bounds              orb.Bound
	CenterZoom          uint8
	Center              orb.Point
}

// Tile is one encoded tile.
type Tile struct {
	Z    uint8
	X, Y uint32
	Data []byte
}

// Archive describes what to write. Tile data must already be compressed
// with TileCompression.
type Archive struct {
	Tiles           []Tile
	TileCompression Compression
	MinZoom         uint8
	MaxZoom         uint8
	Bounds          orb.Bound
	Metadata        map[string]any
}

type entry struct {
	id     uint64
	offset uint64
	length uint32
	run    uint32
}

// TileID converts (z, x, y) to the Hilbert tile id used to order entries.
func TileID(z uint8, x, y uint32) uint64 {
	acc := (uint64(1)<<(uint(z)*2) - 1) / 3
	for s := uint32(1) << z >> 1; s > 0; s >>= 1 {
		rx, ry := s&x, s&y
		var drx, dry uint64
		if rx > 0 {
			drx = 1
		}
		if ry > 0 {
			dry = 1
		}
		acc += uint64(s) * uint64(s) * ((3 * drx) ^ dry)
		if ry == 0 {
			if rx != 0 {
				x, y = s-1-x, s-1-y
			}
			x, y = y, x
		}
	}
	return acc
}

// Write serializes a clustered archive to w. Identical tiles share one
// copy of their data.
func Write(w io.Writer, a Archive) (Header, error) {
	if len(a.Tiles) == 0 {
		return Header{}, errors.New("pmtiles: no tiles")
	}

	tiles := slices.Clone(a.Tiles)
	slices.SortFunc(tiles, func(p, q Tile) int {
		pi, qi := TileID(p.Z, p.X, p.Y), TileID(q.Z, q.X, q.Y)
		switch {
		case pi < qi:
			return -1
		case pi > qi:
			return 1
		}
		return 0
	})

	var data bytes.Buffer
	seen := make(map[string]uint64)
	entries := make([]entry, 0, len(tiles))
	for _, t := range tiles {
		id := TileID(t.Z, t.X, t.Y)
		offset, ok := seen[string(t.Data)]
		if !ok {
			offset = uint64(data.Len())
			seen[string(t.Data)] = offset
			data.Write(t.Data)
		}
		if n := len(entries); n > 0 {
			last := &entries[n-1]
			if last.offset == offset && last.id+uint64(last.run) == id {
				last.run++
				continue
			}
		}
		entries = append(entries, entry{id: id, offset: offset, length: uint32(len(t.Data)), run: 1})
	}

	root, err := serializeEntries(entries)
	if err != nil {
		return Header{}, fmt.Errorf("pmtiles: directory: %w", err)
	}
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return Header{}, fmt.Errorf("pmtiles: metadata: %w", err)
	}
	meta, err = gzipBytes(meta)
	if err != nil {
		return Header{}, fmt.Errorf("pmtiles: metadata: %w", err)
	}

	h := Header{
		RootOffset:          HeaderLen,
		RootLength:          uint64(len(root)),
		Tiles:               uint64(len(tiles)),
		Contents:            uint64(len(seen)),
		InternalCompression: Gzip,
		TileCompression:     a.TileCompression,
		TileType:            Mvt,
		MinZoom:             a.MinZoom,
		MaxZoom:             a.MaxZoom,
		Bounds:              a.Bounds,
		CenterZoom:          a.MinZoom,
		Center:              a.Bounds.Center(),
	}
	h.MetadataOffset = h.RootOffset + h.RootLength
	h.MetadataLength = uint64(len(meta))
	h.TileDataOffset = h.MetadataOffset + h.MetadataLength
	h.TileDataLength = uint64(data.Len())

	for _, part := range [][]byte{serializeHeader(h, uint64(len(entries))), root, meta, data.Bytes()} {
		if _, err := w.Write(part); err != nil {
			return Header{}, err
		}
	}
	return h, nil
}

func gzipBytes(raw []byte) ([]byte, error) {
	var b bytes.Buffer
	zw, err := gzip.NewWriterLevel(&b, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// serializeEntries writes the directory as column-wise varints, gzipped.
func serializeEntries(entries []entry) ([]byte, error) {
	var b bytes.Buffer
	put := func(v uint64) { b.Write(binary.AppendUvarint(nil, v)) }

	put(uint64(len(entries)))
	var last uint64
	for _, e := range entries {
		put(e.id - last)
		last = e.id
	}
	for _, e := range entries {
		put(uint64(e.run))
	}
	for _, e := range entries {
		put(uint64(e.length))
	}
	for i, e := range entries {
		if i > 0 && e.offset == entries[i-1].offset+uint64(entries[i-1].length) {
			put(0)
		} else {
			put(e.offset + 1)
		}
	}
	return gzipBytes(b.Bytes())
}

func e7(v float64) uint32 { return uint32(int32(v * 1e7)) }

func serializeHeader(h Header, dirEntries uint64) []byte {
	b := make([]byte, HeaderLen)
	copy(b, magic)
	b[7] = 3
	le := binary.LittleEndian
	for i, v := range []uint64{
		h.RootOffset, h.RootLength,
		h.MetadataOffset, h.MetadataLength,
		0, 0, // leaf directories
		h.TileDataOffset, h.TileDataLength,
		h.Tiles, dirEntries, h.Contents,
	} {
		le.PutUint64(b[8+8*i:], v)
	}
	b[96] = 1 // clustered
	b[97] = uint8(h.InternalCompression)
	b[98] = uint8(h.TileCompression)
	b[99] = uint8(h.TileType)
	b[100] = h.MinZoom
	b[101] = h.MaxZoom
	le.PutUint32(b[102:], e7(h.Bounds.Min.Lon()))
	le.PutUint32(b[106:], e7(h.Bounds.Min.Lat()))
	le.PutUint32(b[110:], e7(h.Bounds.Max.Lon()))
	le.PutUint32(b[114:], e7(h.Bounds.Max.Lat()))
	b[118] = h.CenterZoom
	le.PutUint32(b[119:], e7(h.Center.Lon()))
	le.PutUint32(b[123:], e7(h.Center.Lat()))
	return b
}

// ReadHeader parses the fixed header at the start of an archive.
func ReadHeader(d []byte) (Header, error) {
	if len(d) < HeaderLen || string(d[:7]) != magic {
		return Header{}, ErrNotArchive
	}
	if d[7] != 3 {
		return Header{}, fmt.Errorf("pmtiles: unsupported version %d", d[7])
	}
	le := binary.LittleEndian
	deg := func(off int) float64 { return float64(int32(le.Uint32(d[off:]))) / 1e7 }
	return Header{
		RootOffset:          le.Uint64(d[8:]),
		RootLength:          le.Uint64(d[16:]),
		MetadataOffset:      le.Uint64(d[24:]),
		MetadataLength:      le.Uint64(d[32:]),
		TileDataOffset:      le.Uint64(d[56:]),
		TileDataLength:      le.Uint64(d[64:]),
		Tiles:               le.Uint64(d[72:]),
		Contents:            le.Uint64(d[88:]),
		InternalCompression: Compression(d[97]),
		TileCompression:     Compression(d[98]),
		TileType:            TileType(d[99]),
		MinZoom:             d[100],
		MaxZoom:             d[101],
		Bounds:              orb.Bound{Min: orb.Point{deg(102), deg(106)}, Max: orb.Point{deg(110), deg(114)}},
		CenterZoom:          d[118],
		Center:              orb.Point{deg(119), deg(123)},
	}, nil
}
