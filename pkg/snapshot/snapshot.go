// Package snapshot stores the state of a level-set run: the field, the
// status labels and the run metadata, zstd compressed.
package snapshot

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"sparsefield/pkg/levelset"
)

const (
	magic   = "SFLS"
	version = 1
)

// Snapshot is one saved state.
type Snapshot struct {
	RunID      uuid.UUID
	Iterations int
	Layers     int
	IsoValue   float64
	Size       []int
	Data       []float64
	Labels     []levelset.Status
}

// FromFilter copies the field and labels of an initialized filter.
func FromFilter(runID uuid.UUID, iterations int, f *levelset.Filter) *Snapshot {
	out := f.Output().Clone()
	return &Snapshot{
		RunID:      runID,
		Iterations: iterations,
		Layers:     f.Config().NumberOfLayers,
		IsoValue:   f.Config().IsoValue,
		Size:       out.Size(),
		Data:       out.Data(),
		Labels:     f.StatusGrid().Labels(),
	}
}

var encPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderConcurrency(1),
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		)
		if err != nil {
			panic(err)
		}
		return enc
	},
}

var decPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(err)
		}
		return dec
	},
}

// Encode serializes and compresses the snapshot.
func (s *Snapshot) Encode() ([]byte, error) {
	n := 1
	for _, l := range s.Size {
		n *= l
	}
	if len(s.Data) != n || len(s.Labels) != n {
		return nil, fmt.Errorf("snapshot: %d values and %d labels for %d pixels", len(s.Data), len(s.Labels), n)
	}

	buf := make([]byte, 0, len(magic)+2+16+4*(4+len(s.Size))+8+12*n)
	buf = append(buf, magic...)
	buf = binary.BigEndian.AppendUint16(buf, version)
	buf = append(buf, s.RunID[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(s.Iterations))
	buf = binary.BigEndian.AppendUint32(buf, uint32(s.Layers))
	buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(s.IsoValue))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s.Size)))
	for _, l := range s.Size {
		buf = binary.BigEndian.AppendUint32(buf, uint32(l))
	}
	for _, v := range s.Data {
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v))
	}
	for _, st := range s.Labels {
		buf = binary.BigEndian.AppendUint32(buf, uint32(st))
	}

	enc := encPool.Get().(*zstd.Encoder)
	out := enc.EncodeAll(buf, nil)
	encPool.Put(enc)
	return out, nil
}

// Decode is the inverse of Encode.
func Decode(compData []byte) (*Snapshot, error) {
	dec := decPool.Get().(*zstd.Decoder)
	payload, err := dec.DecodeAll(compData, nil)
	decPool.Put(dec)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}

	if len(payload) < len(magic) {
		return nil, fmt.Errorf("read header: short magic")
	}
	if string(payload[:len(magic)]) != magic {
		return nil, fmt.Errorf("bad magic: %q", string(payload[:len(magic)]))
	}
	pos := len(magic)

	need := func(label string, size int) error {
		if len(payload)-pos < size {
			return fmt.Errorf("decode: truncated while reading %s", label)
		}
		return nil
	}
	readU32 := func(label string) (uint32, error) {
		if err := need(label, 4); err != nil {
			return 0, err
		}
		v := binary.BigEndian.Uint32(payload[pos : pos+4])
		pos += 4
		return v, nil
	}
	readU64 := func(label string) (uint64, error) {
		if err := need(label, 8); err != nil {
			return 0, err
		}
		v := binary.BigEndian.Uint64(payload[pos : pos+8])
		pos += 8
		return v, nil
	}

	if err := need("version", 2); err != nil {
		return nil, err
	}
	if v := binary.BigEndian.Uint16(payload[pos:]); v != version {
		return nil, fmt.Errorf("unsupported snapshot version %d", v)
	}
	pos += 2

	s := &Snapshot{}
	if err := need("run id", 16); err != nil {
		return nil, err
	}
	copy(s.RunID[:], payload[pos:pos+16])
	pos += 16

	iterations, err := readU32("iterations")
	if err != nil {
		return nil, err
	}
	layers, err := readU32("layers")
	if err != nil {
		return nil, err
	}
	iso, err := readU64("iso value")
	if err != nil {
		return nil, err
	}
	dims, err := readU32("dims")
	if err != nil {
		return nil, err
	}
	s.Iterations, s.Layers, s.IsoValue = int(iterations), int(layers), math.Float64frombits(iso)

	// every pixel takes 12 bytes, which bounds n before anything is allocated
	maxPixels := len(payload) / 12
	n := 1
	for axis := 0; axis < int(dims); axis++ {
		l, err := readU32("size")
		if err != nil {
			return nil, err
		}
		if l == 0 {
			return nil, fmt.Errorf("decode: axis %d has zero length", axis)
		}
		if uint64(n)*uint64(l) > uint64(maxPixels) {
			return nil, fmt.Errorf("decode: truncated while reading pixels (size exceeds payload)")
		}
		s.Size = append(s.Size, int(l))
		n *= int(l)
	}

	if err := need("pixels", 12*n); err != nil {
		return nil, err
	}
	s.Data = make([]float64, n)
	for i := range s.Data {
		s.Data[i] = math.Float64frombits(binary.BigEndian.Uint64(payload[pos:]))
		pos += 8
	}
	s.Labels = make([]levelset.Status, n)
	for i := range s.Labels {
		s.Labels[i] = levelset.Status(int32(binary.BigEndian.Uint32(payload[pos:])))
		pos += 4
	}
	if pos != len(payload) {
		return nil, fmt.Errorf("decode: %d trailing bytes", len(payload)-pos)
	}
	return s, nil
}

// Write encodes s to path, creating its directory.
func Write(s *Snapshot, path string) error {
	data, err := s.Encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating snapshot directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing snapshot: %w", err)
	}
	return nil
}

// Read loads a snapshot written by Write.
func Read(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}
	return Decode(data)
}
