package packet

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

// Writer builds a server packet. All multi-byte writes are little-endian.
// The final Bytes() output is padded to an 8-byte boundary so the frame
// cipher never needs partial blocks.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

func NewWriterWithOpcode(opcode byte) *Writer {
	w := &Writer{buf: make([]byte, 0, 64)}
	w.WriteC(opcode)
	return w
}

// WriteC writes 1 byte.
func (w *Writer) WriteC(v byte) {
	w.buf = append(w.buf, v)
}

// WriteH writes 2 bytes little-endian.
func (w *Writer) WriteH(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteD writes 4 bytes little-endian (signed or unsigned via cast).
func (w *Writer) WriteD(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	w.buf = append(w.buf, b[:]...)
}

// WriteDU writes 4 bytes little-endian unsigned.
func (w *Writer) WriteDU(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteS writes a zero-word-terminated UTF-16LE string.
func (w *Writer) WriteS(s string) {
	if len(s) > 0 {
		encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
		if err == nil {
			w.buf = append(w.buf, encoded...)
		} else {
			// Fallback: widen bytes directly (works for pure ASCII)
			for i := 0; i < len(s); i++ {
				w.buf = append(w.buf, s[i], 0)
			}
		}
	}
	w.buf = append(w.buf, 0, 0) // terminator word
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the packet content padded to an 8-byte boundary.
func (w *Writer) Bytes() []byte {
	for len(w.buf)%8 != 0 {
		w.buf = append(w.buf, 0)
	}
	return w.buf
}

// RawBytes returns the packet content without padding (for the init packet).
func (w *Writer) RawBytes() []byte {
	return w.buf
}

// Len returns the current unpadded length.
func (w *Writer) Len() int {
	return len(w.buf)
}
