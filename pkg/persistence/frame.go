package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Frame layout constants.
const (
	// MagicByte marks the start of every frame.
	MagicByte = 0xA5

	// HeaderSize is Magic(1) + OpCode(1) + Length(4) + CRC32(4).
	HeaderSize = 10

	// OpCodeHeader frames carry the collection header.
	OpCodeHeader = 0x01
	// OpCodePointData frames carry one tagged point set.
	OpCodePointData = 0x02
)

var (
	// ErrInvalidMagic indicates the stream lost synchronization or is not a
	// collection file.
	ErrInvalidMagic = errors.New("invalid magic byte")
	// ErrChecksumMismatch indicates a corrupted payload.
	ErrChecksumMismatch = errors.New("crc32 checksum mismatch")
	// ErrIncompleteFrame indicates the stream ended inside a frame.
	ErrIncompleteFrame = errors.New("incomplete frame")
	// ErrUnexpectedOpCode is returned when a frame of the wrong kind is found.
	ErrUnexpectedOpCode = errors.New("unexpected op code")
)

// Frame is one decoded frame.
type Frame struct {
	Op      byte
	Payload []byte
}

// FrameWriter writes frames to an io.Writer.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter wraps w. Wrap files in a bufio.Writer so header and
// payload go out in one write.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes [Magic][OpCode][Length][CRC][Payload], integers little
// endian.
func (fw *FrameWriter) WriteFrame(op byte, payload []byte) error {
	header := make([]byte, HeaderSize)
	header[0] = MagicByte
	header[1] = op
	binary.LittleEndian.PutUint32(header[2:6], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[6:10], crc32.ChecksumIEEE(payload))

	if _, err := fw.w.Write(header); err != nil {
		return err
	}
	if _, err := fw.w.Write(payload); err != nil {
		return err
	}
	return nil
}

// ReadFrame reads and validates the next frame. It returns io.EOF only when
// the stream ends exactly on a frame boundary. n is the number of bytes
// consumed.
func ReadFrame(r io.Reader) (f Frame, n int, err error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return Frame{}, 0, io.EOF
		}
		return Frame{}, 0, ErrIncompleteFrame
	}
	if header[0] != MagicByte {
		return Frame{}, HeaderSize, ErrInvalidMagic
	}

	length := binary.LittleEndian.Uint32(header[2:6])
	expected := binary.LittleEndian.Uint32(header[6:10])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, HeaderSize, ErrIncompleteFrame
	}
	if crc32.ChecksumIEEE(payload) != expected {
		return Frame{}, HeaderSize + int(length), ErrChecksumMismatch
	}
	return Frame{Op: header[1], Payload: payload}, HeaderSize + int(length), nil
}

// expectOp reads the next frame and checks its op code.
func expectOp(r io.Reader, op byte) ([]byte, error) {
	f, _, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	if f.Op != op {
		return nil, fmt.Errorf("%w: got 0x%02x, want 0x%02x", ErrUnexpectedOpCode, f.Op, op)
	}
	return f.Payload, nil
}
