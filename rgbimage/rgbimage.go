// Package rgbimage accumulates radiance samples per pixel and stores them in a
// resumable binary container.
//
// The container is an 8-byte little-endian header length, a header encoded in
// protobuf wire format, and a zlib stream holding the little-endian float32
// sample sums (three per pixel) followed by the sample counts (one per pixel).
package rgbimage

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"glint/vmath/vec3"

	"github.com/nfnt/resize"
	"google.golang.org/protobuf/encoding/protowire"
)

const dataLayoutVersion = 1

// Header field numbers.
const (
	fieldRowSize           protowire.Number = 1
	fieldColSize           protowire.Number = 2
	fieldDataLayoutVersion protowire.Number = 3
)

type RGBImage struct {
	RowSize, ColSize int

	// Three sums (R, G, B) per pixel, row-major.
	Sums []float32

	// One count per pixel, row-major.
	Counts []float32
}

type Sample struct {
	Sum   vec3.T
	Count float32
}

// Mean is the average of the samples recorded, or black if there are none.
func (s Sample) Mean() vec3.T {
	if s.Count == 0 {
		return vec3.T{}
	}
	return vec3.DivVS(s.Sum, float64(s.Count))
}

func New(rowSize, colSize int) *RGBImage {
	im := &RGBImage{}
	im.Resize(rowSize, colSize)
	return im
}

// Resize discards all samples and sets new dimensions.
func (s *RGBImage) Resize(rowSize, colSize int) {
	s.RowSize = rowSize
	s.ColSize = colSize

	s.Sums = make([]float32, rowSize*colSize*3)
	s.Counts = make([]float32, rowSize*colSize)
}

func (s *RGBImage) RecordSample(r, c int, radiance vec3.T) {
	idx := r*s.ColSize + c
	s.Sums[3*idx+0] += float32(radiance[0])
	s.Sums[3*idx+1] += float32(radiance[1])
	s.Sums[3*idx+2] += float32(radiance[2])
	s.Counts[idx] += 1
}

func (s *RGBImage) ReadSample(r, c int) Sample {
	idx := r*s.ColSize + c
	return Sample{
		Sum: vec3.T{
			float64(s.Sums[3*idx+0]),
			float64(s.Sums[3*idx+1]),
			float64(s.Sums[3*idx+2]),
		},
		Count: s.Counts[idx],
	}
}

// TotalSamples counts every sample recorded so far, across all pixels.
func (s *RGBImage) TotalSamples() int {
	total := 0
	for _, c := range s.Counts {
		total += int(c)
	}
	return total
}

// Develop converts the mean of each pixel to 8-bit color.
//
// Channels are raised to the power 1/gamma and clamped to [0, 1].  Pixels
// without samples are black.
func (s *RGBImage) Develop(gamma float64) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, s.ColSize, s.RowSize))
	for r := 0; r < s.RowSize; r++ {
		for c := 0; c < s.ColSize; c++ {
			mean := s.ReadSample(r, c).Mean()
			out.SetNRGBA(c, r, color.NRGBA{
				R: quantize(mean[0], gamma),
				G: quantize(mean[1], gamma),
				B: quantize(mean[2], gamma),
				A: 0xff,
			})
		}
	}
	return out
}

func quantize(v, gamma float64) uint8 {
	if !(v > 0) {
		return 0
	}
	v = math.Pow(v, 1/gamma)
	if v >= 1 {
		return 0xff
	}
	return uint8(math.Round(v * 255))
}

// Thumbnail scales img to the given width, preserving aspect ratio.
func Thumbnail(img image.Image, width uint) image.Image {
	return resize.Resize(width, 0, img, resize.Lanczos3)
}

func EncodePNG(img image.Image) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("while encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

func marshalHeader(im *RGBImage) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldRowSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(im.RowSize))
	b = protowire.AppendTag(b, fieldColSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(im.ColSize))
	b = protowire.AppendTag(b, fieldDataLayoutVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, dataLayoutVersion)
	return b
}

type header struct {
	rowSize, colSize, dataLayoutVersion uint64
}

func unmarshalHeader(b []byte) (header, error) {
	hdr := header{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return header{}, fmt.Errorf("while reading header tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.VarintType {
			// Skip fields from newer writers.
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return header{}, fmt.Errorf("while skipping header field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return header{}, fmt.Errorf("while reading header field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldRowSize:
			hdr.rowSize = v
		case fieldColSize:
			hdr.colSize = v
		case fieldDataLayoutVersion:
			hdr.dataLayoutVersion = v
		}
	}
	return hdr, nil
}

// maxPixels bounds the images Read will allocate for.  At 16 bytes per pixel
// this is 4 GiB of samples.
const maxPixels = 1 << 28

// checkDimensions rejects header dimensions that are empty or too large to
// allocate.
func checkDimensions(rows, cols uint64) error {
	if rows == 0 || cols == 0 {
		return fmt.Errorf("image dimensions %dx%d are empty", cols, rows)
	}
	if rows > math.MaxInt32 || cols > math.MaxInt32 {
		return fmt.Errorf("image dimensions %dx%d are out of range", cols, rows)
	}
	// Both factors are below 2^31, so the product cannot overflow.
	if rows*cols > maxPixels {
		return fmt.Errorf("image dimensions %dx%d exceed %d pixels", cols, rows, maxPixels)
	}
	return nil
}

func Read(in io.Reader) (*RGBImage, error) {
	var headerLength uint64
	if err := binary.Read(in, binary.LittleEndian, &headerLength); err != nil {
		return nil, fmt.Errorf("while reading header length: %w", err)
	}
	if headerLength > 1<<20 {
		return nil, fmt.Errorf("header length %d is implausibly large", headerLength)
	}

	headerBytes := make([]byte, int(headerLength))
	if _, err := io.ReadFull(in, headerBytes); err != nil {
		return nil, fmt.Errorf("while reading header bytes: %w", err)
	}

	hdr, err := unmarshalHeader(headerBytes)
	if err != nil {
		return nil, fmt.Errorf("while unmarshaling header: %w", err)
	}

	if hdr.dataLayoutVersion != dataLayoutVersion {
		return nil, fmt.Errorf("bad data layout version: %v", hdr.dataLayoutVersion)
	}

	if err := checkDimensions(hdr.rowSize, hdr.colSize); err != nil {
		return nil, err
	}

	im := New(int(hdr.rowSize), int(hdr.colSize))

	zipReader, err := zlib.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("while opening zip reader: %w", err)
	}
	defer zipReader.Close()

	if err := binary.Read(zipReader, binary.LittleEndian, im.Sums); err != nil {
		return nil, fmt.Errorf("while reading sample sums: %w", err)
	}

	if err := binary.Read(zipReader, binary.LittleEndian, im.Counts); err != nil {
		return nil, fmt.Errorf("while reading sample counts: %w", err)
	}

	return im, nil
}

func ReadFromFile(name string) (*RGBImage, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("while opening file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

func Write(im *RGBImage, w io.Writer) error {
	hdrBytes := marshalHeader(im)

	headerLengthBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(headerLengthBytes, uint64(len(hdrBytes)))
	if _, err := w.Write(headerLengthBytes); err != nil {
		return fmt.Errorf("while writing header length: %w", err)
	}

	if _, err := w.Write(hdrBytes); err != nil {
		return fmt.Errorf("while writing header: %w", err)
	}

	zipWriter := zlib.NewWriter(w)

	if err := binary.Write(zipWriter, binary.LittleEndian, im.Sums); err != nil {
		return fmt.Errorf("while writing sample sums: %w", err)
	}

	if err := binary.Write(zipWriter, binary.LittleEndian, im.Counts); err != nil {
		return fmt.Errorf("while writing sample counts: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("while closing zip writer: %w", err)
	}

	return nil
}

// WriteToFile writes the container to a temporary file next to name and
// renames it into place, so an interrupted write never clobbers old samples.
func WriteToFile(im *RGBImage, name string) error {
	tmpName := name + ".tmp"
	f, err := os.Create(tmpName)
	if err != nil {
		return fmt.Errorf("while creating temporary file: %w", err)
	}

	if err := Write(im, f); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("while closing temporary file: %w", err)
	}

	if err := os.Rename(tmpName, name); err != nil {
		return fmt.Errorf("while renaming temporary file into place: %w", err)
	}
	return nil
}

func (s *RGBImage) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := Write(s, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *RGBImage) UnmarshalBinary(data []byte) error {
	im, err := Read(bytes.NewReader(data))
	if err != nil {
		return err
	}
	*s = *im
	return nil
}
