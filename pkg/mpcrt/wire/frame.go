package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame.
const MaxFrameSize = 16 << 20

// WriteFrame writes payload prefixed by its 4-byte big-endian length.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("wire: frame too large (%d bytes)", len(payload))
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one frame written by WriteFrame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame too large (%d bytes)", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteHello sends the player id that opens every connection.
func WriteHello(w io.Writer, id uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], id)
	return WriteFrame(w, b[:])
}

// ReadHello reads the player id frame.
func ReadHello(r io.Reader) (uint32, error) {
	b, err := ReadFrame(r)
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, fmt.Errorf("wire: hello frame has %d bytes", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}
