// Package pump copies bytes from one stream to another until end of stream.
package pump

import (
	"io"

	"github.com/pkg/errors"
	oi "github.com/reiver/go-oi"
)

// BufferSize is the size of the read buffer used by Pump and PumpFunc.
const BufferSize = 1024

// Pump copies src to dst without transforming the bytes. It returns nil
// when src reports io.EOF, and the read or write error otherwise. The
// returned count is the number of bytes read from src.
func Pump(src io.Reader, dst io.Writer) (int64, error) {
	return PumpFunc(src, func(chunk []byte) error {
		_, err := oi.LongWrite(dst, chunk)
		return err
	})
}

// PumpFunc reads src in BufferSize chunks and passes each chunk to fn. The
// chunk is only valid until fn returns.
func PumpFunc(src io.Reader, fn func(chunk []byte) error) (int64, error) {
	return PumpBuffer(src, make([]byte, BufferSize), fn)
}

// PumpBuffer is PumpFunc with a caller supplied buffer.
func PumpBuffer(src io.Reader, buf []byte, fn func(chunk []byte) error) (int64, error) {
	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if werr := fn(buf[:n]); werr != nil {
				return total, werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
	}
}
