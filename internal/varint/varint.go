// Package varint implements the primitive number encoding used by jsaot
// debug-information records.
//
// All numbers are little-endian base-128 varints: the low seven bits of each
// byte carry value bits, the high bit is a continuation flag. Signed numbers
// store a sign flag in the least-significant bit of the unsigned
// representation. On top of these primitives the package provides
// run-length-encoded integer arrays, relative (running accumulator)
// sequences, and length-prefixed UTF-8 strings.
package varint

import (
	"bufio"
	"errors"
	"io"
)

var (
	// ErrTruncated is returned when the byte stream ends in the middle of
	// a number or string.
	ErrTruncated = errors.New("varint: truncated input")

	// ErrMalformed is returned for input that is syntactically readable
	// but internally inconsistent, such as a run-length sequence that
	// overflows its declared length.
	ErrMalformed = errors.New("varint: malformed input")
)

// maxBytes bounds the length of a single varint. Values are 32-bit in the
// record format; five base-128 groups cover them.
const maxBytes = 5

type byteScanner interface {
	io.Reader
	io.ByteReader
}

// Reader decodes varint primitives from a byte stream.
type Reader struct {
	in   byteScanner
	last int // accumulator for relative sequences
}

// NewReader returns a Reader decoding from r. If r does not implement
// io.ByteReader it is wrapped in a bufio.Reader.
func NewReader(r io.Reader) *Reader {
	if bs, ok := r.(byteScanner); ok {
		return &Reader{in: bs}
	}
	return &Reader{in: bufio.NewReader(r)}
}

// ReadUint decodes one unsigned varint.
func (r *Reader) ReadUint() (int, error) {
	var n uint32
	var shift uint
	for i := 0; i < maxBytes; i++ {
		b, err := r.in.ReadByte()
		if err != nil {
			return 0, ErrTruncated
		}
		n |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return int(n), nil
		}
		shift += 7
	}
	return 0, ErrMalformed
}

// ReadInt decodes one signed number: an unsigned varint whose low bit is a
// sign flag and whose remaining bits are the magnitude.
func (r *Reader) ReadInt() (int, error) {
	n, err := r.ReadUint()
	if err != nil {
		return 0, err
	}
	return unflagSign(n), nil
}

// ResetRelative resets the running accumulator used by ReadRelative. Each
// logical section of a record starts from a zero accumulator.
func (r *Reader) ResetRelative() {
	r.last = 0
}

// ReadRelative decodes one element of a relative sequence: a signed delta
// added to the running accumulator. The accumulated value is returned.
func (r *Reader) ReadRelative() (int, error) {
	d, err := r.ReadInt()
	if err != nil {
		return 0, err
	}
	r.last += d
	return r.last, nil
}

// ReadRunLength decodes a run-length-encoded integer array. The stream
// carries the array length followed by (value, optional repeat count)
// records; a record whose low bit is set is followed by a repeat count.
func (r *Reader) ReadRunLength() ([]int, error) {
	n, err := r.ReadUint()
	if err != nil {
		return nil, err
	}
	out := make([]int, n)
	for i := 0; i < n; {
		raw, err := r.ReadUint()
		if err != nil {
			return nil, err
		}
		count := 1
		if raw&1 != 0 {
			count, err = r.ReadUint()
			if err != nil {
				return nil, err
			}
			if count == 0 {
				return nil, ErrMalformed
			}
		}
		if i+count > n {
			return nil, ErrMalformed
		}
		v := unflagSign(raw >> 1)
		for ; count > 0; count-- {
			out[i] = v
			i++
		}
	}
	return out, nil
}

// ReadString decodes a length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.in, buf); err != nil {
		return "", ErrTruncated
	}
	return string(buf), nil
}

func unflagSign(n int) int {
	if n&1 != 0 {
		return -(n >> 1)
	}
	return n >> 1
}

// Writer encodes varint primitives to a byte stream. It is the exact
// inverse of Reader: decoding what Writer produced yields the original
// values byte for byte.
type Writer struct {
	out  io.Writer
	buf  [maxBytes]byte
	last int
}

// NewWriter returns a Writer encoding to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{out: w}
}

// WriteUint encodes one unsigned varint. n must be non-negative.
func (w *Writer) WriteUint(n int) error {
	u := uint32(n)
	i := 0
	for u >= 0x80 {
		w.buf[i] = byte(u) | 0x80
		u >>= 7
		i++
	}
	w.buf[i] = byte(u)
	_, err := w.out.Write(w.buf[:i+1])
	return err
}

// WriteInt encodes one signed number.
func (w *Writer) WriteInt(n int) error {
	return w.WriteUint(flagSign(n))
}

// ResetRelative resets the running accumulator used by WriteRelative.
func (w *Writer) ResetRelative() {
	w.last = 0
}

// WriteRelative encodes one element of a relative sequence as a signed
// delta from the previously written element.
func (w *Writer) WriteRelative(n int) error {
	d := n - w.last
	w.last = n
	return w.WriteInt(d)
}

// WriteRunLength encodes an integer array with run-length compression.
func (w *Writer) WriteRunLength(values []int) error {
	if err := w.WriteUint(len(values)); err != nil {
		return err
	}
	for i := 0; i < len(values); {
		j := i
		for j < len(values) && values[j] == values[i] {
			j++
		}
		count := j - i
		raw := flagSign(values[i]) << 1
		if count > 1 {
			if err := w.WriteUint(raw | 1); err != nil {
				return err
			}
			if err := w.WriteUint(count); err != nil {
				return err
			}
		} else {
			if err := w.WriteUint(raw); err != nil {
				return err
			}
		}
		i = j
	}
	return nil
}

// WriteString encodes a length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) error {
	if err := w.WriteUint(len(s)); err != nil {
		return err
	}
	_, err := io.WriteString(w.out, s)
	return err
}

func flagSign(n int) int {
	if n < 0 {
		return (-n)<<1 | 1
	}
	return n << 1
}
