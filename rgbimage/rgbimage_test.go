package rgbimage

import (
	"bytes"
	"encoding/binary"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"glint/vmath/vec3"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestRecordAndRead(t *testing.T) {
	im := New(2, 3)
	im.RecordSample(1, 2, vec3.T{1, 2, 3})
	im.RecordSample(1, 2, vec3.T{3, 2, 1})
	im.RecordSample(0, 0, vec3.T{0.5, 0, 0})

	got := im.ReadSample(1, 2)
	want := Sample{Sum: vec3.T{4, 4, 4}, Count: 2}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad sample; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(got.Mean(), vec3.T{2, 2, 2}); diff != "" {
		t.Errorf("Bad mean; diff (-got +want)\n%s", diff)
	}

	if diff := cmp.Diff(im.ReadSample(0, 1), Sample{}); diff != "" {
		t.Errorf("Untouched pixel is not empty; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(im.ReadSample(0, 1).Mean(), vec3.T{}); diff != "" {
		t.Errorf("Mean of empty pixel is not black; diff (-got +want)\n%s", diff)
	}

	if got := im.TotalSamples(); got != 3 {
		t.Errorf("TotalSamples() = %d, want 3", got)
	}
}

func TestRoundTrip(t *testing.T) {
	im := New(4, 5)
	for r := 0; r < 4; r++ {
		for c := 0; c < 5; c++ {
			for i := 0; i <= r+c; i++ {
				im.RecordSample(r, c, vec3.T{float64(r), float64(c), 0.25})
			}
		}
	}

	buf := &bytes.Buffer{}
	if err := Write(im, buf); err != nil {
		t.Fatalf("Unexpected error while writing: %v", err)
	}

	got, err := Read(buf)
	if err != nil {
		t.Fatalf("Unexpected error while reading: %v", err)
	}

	if diff := cmp.Diff(got, im); diff != "" {
		t.Errorf("Round trip changed image; diff (-got +want)\n%s", diff)
	}
}

func TestFileRoundTrip(t *testing.T) {
	name := filepath.Join(t.TempDir(), "out.rgbacc")

	im := New(2, 2)
	im.RecordSample(0, 1, vec3.T{0.1, 0.2, 0.3})

	if err := WriteToFile(im, name); err != nil {
		t.Fatalf("Unexpected error while writing: %v", err)
	}

	got, err := ReadFromFile(name)
	if err != nil {
		t.Fatalf("Unexpected error while reading: %v", err)
	}
	if diff := cmp.Diff(got, im); diff != "" {
		t.Errorf("Round trip changed image; diff (-got +want)\n%s", diff)
	}

	if _, err := ReadFromFile(name + ".tmp"); err == nil {
		t.Errorf("Temporary file was left behind")
	}
}

func TestBinaryMarshaler(t *testing.T) {
	im := New(1, 1)
	im.RecordSample(0, 0, vec3.T{1, 1, 1})

	data, err := im.MarshalBinary()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got := &RGBImage{}
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(got, im); diff != "" {
		t.Errorf("Round trip changed image; diff (-got +want)\n%s", diff)
	}
}

// containerHeader encodes just the header-length prefix and header of a
// container.
func containerHeader(rows, cols, version uint64) *bytes.Buffer {
	var hdr []byte
	hdr = protowire.AppendTag(hdr, fieldRowSize, protowire.VarintType)
	hdr = protowire.AppendVarint(hdr, rows)
	hdr = protowire.AppendTag(hdr, fieldColSize, protowire.VarintType)
	hdr = protowire.AppendVarint(hdr, cols)
	hdr = protowire.AppendTag(hdr, fieldDataLayoutVersion, protowire.VarintType)
	hdr = protowire.AppendVarint(hdr, version)

	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, uint64(len(hdr)))
	buf.Write(hdr)
	return buf
}

func TestReadRejectsBadVersion(t *testing.T) {
	if _, err := Read(containerHeader(1, 1, 7)); err == nil {
		t.Errorf("Read accepted data layout version 7")
	}
}

func TestReadRejectsBadDimensions(t *testing.T) {
	testCases := []struct {
		desc       string
		rows, cols uint64
	}{
		{desc: "no rows", rows: 0, cols: 4},
		{desc: "no cols", rows: 4, cols: 0},
		{desc: "rows beyond int", rows: 1 << 63, cols: 1},
		{desc: "cols beyond int32", rows: 1, cols: 1 << 31},
		{desc: "product wraps to zero", rows: 1 << 40, cols: 1 << 40},
		{desc: "too many pixels", rows: 1 << 20, cols: 1 << 20},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			im, err := Read(containerHeader(tc.rows, tc.cols, dataLayoutVersion))
			if err == nil {
				t.Fatalf("Read accepted %dx%d image with %d sums", tc.cols, tc.rows, len(im.Sums))
			}
		})
	}
}

func TestReadSkipsUnknownHeaderFields(t *testing.T) {
	im := New(1, 2)
	im.RecordSample(0, 1, vec3.T{2, 2, 2})

	buf := &bytes.Buffer{}
	if err := Write(im, buf); err != nil {
		t.Fatalf("Unexpected error while writing: %v", err)
	}
	data := buf.Bytes()

	// Splice a length-delimited field 9 onto the end of the header.
	hdrLen := binary.LittleEndian.Uint64(data[:8])
	extra := protowire.AppendTag(nil, 9, protowire.BytesType)
	extra = protowire.AppendBytes(extra, []byte("future"))

	spliced := &bytes.Buffer{}
	binary.Write(spliced, binary.LittleEndian, hdrLen+uint64(len(extra)))
	spliced.Write(data[8 : 8+hdrLen])
	spliced.Write(extra)
	spliced.Write(data[8+hdrLen:])

	got, err := Read(spliced)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(got, im); diff != "" {
		t.Errorf("Image changed; diff (-got +want)\n%s", diff)
	}
}

func TestReadTruncated(t *testing.T) {
	im := New(3, 3)
	data, err := im.MarshalBinary()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Cut inside the length, inside the header, and inside the zlib header.
	hdrLen := int(binary.LittleEndian.Uint64(data[:8]))
	for _, n := range []int{0, 4, 10, 8 + hdrLen + 1} {
		if _, err := Read(bytes.NewReader(data[:n])); err == nil {
			t.Errorf("Read accepted container truncated to %d bytes", n)
		}
	}
}

func TestDevelop(t *testing.T) {
	im := New(1, 4)
	im.RecordSample(0, 0, vec3.T{0.25, 1, 4})
	im.RecordSample(0, 1, vec3.T{-1, 0, 0.25})
	im.RecordSample(0, 1, vec3.T{-1, 0, 0.25})
	im.RecordSample(0, 3, vec3.T{1, 1, 1})

	got := im.Develop(2.0)
	if got.Bounds().Dx() != 4 || got.Bounds().Dy() != 1 {
		t.Fatalf("Developed image has bounds %v, want 4x1", got.Bounds())
	}

	want := []color.NRGBA{
		{R: 128, G: 255, B: 255, A: 255},
		{R: 0, G: 0, B: 128, A: 255},
		{R: 0, G: 0, B: 0, A: 255},
		{R: 255, G: 255, B: 255, A: 255},
	}
	for c, w := range want {
		if diff := cmp.Diff(got.NRGBAAt(c, 0), w); diff != "" {
			t.Errorf("Bad pixel %d; diff (-got +want)\n%s", c, diff)
		}
	}
}

func TestThumbnailAndPNG(t *testing.T) {
	im := New(40, 80)
	for r := 0; r < 40; r++ {
		for c := 0; c < 80; c++ {
			im.RecordSample(r, c, vec3.T{0.5, 0.5, 0.5})
		}
	}

	thumb := Thumbnail(im.Develop(1.0), 20)
	if thumb.Bounds().Dx() != 20 || thumb.Bounds().Dy() != 10 {
		t.Errorf("Thumbnail has bounds %v, want 20x10", thumb.Bounds())
	}

	data, err := EncodePNG(thumb)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Encoded thumbnail is not a PNG: %v", err)
	}
	if decoded.Bounds() != thumb.Bounds() {
		t.Errorf("Decoded bounds %v, want %v", decoded.Bounds(), thumb.Bounds())
	}
}
