package opus

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// FrameReader reads the frames written by WriteFrame.
type FrameReader struct {
	r      *bufio.Reader
	header [2]byte
	frames int
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// ReadFrame returns the next frame, or io.EOF once the stream ends on a
// frame boundary. A stream cut inside a frame yields io.ErrUnexpectedEOF.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(f.r, f.header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("frame %d header: %w", f.frames, err)
		}
		return nil, err
	}

	frame := make([]byte, binary.LittleEndian.Uint16(f.header[:]))
	if _, err := io.ReadFull(f.r, frame); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("frame %d body: %w", f.frames, err)
	}
	f.frames++
	return frame, nil
}

// Frames reports how many complete frames have been read.
func (f *FrameReader) Frames() int {
	return f.frames
}
