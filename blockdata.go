package javaio

import (
	"io"

	"github.com/cockroachdb/errors"
)

// refill positions the decoder on block data and returns the number of
// bytes left in the current block. Zero means the block data has ended:
// the next byte is a tag, or the input is exhausted.
func (dec *Decoder) refill() (int, error) {
	for dec.unread == 0 {
		b, err := dec.r.Peek(1)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, nil
			}
			return 0, err
		}
		switch b[0] {
		case TcBlockdata:
			var hdr [2]byte
			if _, err := io.ReadFull(dec.r, hdr[:]); err != nil {
				return 0, unexpectedEOF(err)
			}
			dec.unread = int(hdr[1])
		case TcBlockdatalong:
			var hdr [5]byte
			if _, err := io.ReadFull(dec.r, hdr[:]); err != nil {
				return 0, unexpectedEOF(err)
			}
			n := int32(hdr[1])<<24 | int32(hdr[2])<<16 | int32(hdr[3])<<8 | int32(hdr[4])
			if n < 0 {
				return 0, streamCorrupted("illegal block data header length: %d", n)
			}
			dec.unread = int(n)
		case TcReset:
			if _, err := dec.r.ReadByte(); err != nil {
				return 0, err
			}
			if err := dec.handleReset(); err != nil {
				return 0, err
			}
		default:
			return 0, nil
		}
	}
	return dec.unread, nil
}

func (dec *Decoder) Read(p []byte) (int, error) {
	if !dec.blockDataMode {
		return dec.r.Read(p)
	}
	n, err := dec.refill()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	if len(p) > n {
		p = p[:n]
	}
	m, err := dec.r.Read(p)
	dec.unread -= m
	return m, unexpectedEOF(err)
}

// ReadFully fills p, failing with io.ErrUnexpectedEOF on a short read.
func (dec *Decoder) ReadFully(p []byte) error {
	_, err := io.ReadFull(dec, p)
	return err
}

func (dec *Decoder) skipBlockData() error {
	for {
		n, err := dec.refill()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		m, err := dec.r.Discard(n)
		dec.unread -= m
		if err != nil {
			return unexpectedEOF(err)
		}
	}
}

// skipCustomData discards the rest of a class's custom data, objects
// included, through the closing TC_ENDBLOCKDATA. It leaves block-data mode
// off.
func (dec *Decoder) skipCustomData() error {
	for {
		if dec.blockDataMode {
			if err := dec.skipBlockData(); err != nil {
				return err
			}
			dec.blockDataMode = false
		}
		b, err := dec.r.Peek(1)
		if err != nil {
			return unexpectedEOF(err)
		}
		switch b[0] {
		case TcBlockdata, TcBlockdatalong:
			dec.blockDataMode = true
		case TcEndblockdata:
			_, err := dec.r.ReadByte()
			return err
		default:
			if _, err := dec.readObject(); err != nil {
				return err
			}
		}
	}
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
