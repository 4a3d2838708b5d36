package javaio

import (
	"unicode/utf16"
)

// encodeModifiedUTF8 encodes s the way DataOutput.writeUTF does: UTF-16
// code units, NUL as two bytes, supplementary characters as surrogate pairs
// of three bytes each. Bytes of s that are not valid UTF-8 are written as
// U+FFFD, so such a string does not survive a round trip.
func encodeModifiedUTF8(s string) []byte {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] == 0 || s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return []byte(s)
	}
	buf := make([]byte, 0, len(s)+len(s)/2)
	for _, r := range s {
		if r >= 0x10000 {
			hi, lo := utf16.EncodeRune(r)
			buf = appendModifiedChar(buf, uint16(hi))
			buf = appendModifiedChar(buf, uint16(lo))
			continue
		}
		buf = appendModifiedChar(buf, uint16(r))
	}
	return buf
}

func appendModifiedChar(buf []byte, c uint16) []byte {
	switch {
	case c >= 0x0001 && c <= 0x007F:
		return append(buf, byte(c))
	case c > 0x07FF:
		return append(buf,
			0xE0|byte(c>>12&0x0F),
			0x80|byte(c>>6&0x3F),
			0x80|byte(c&0x3F))
	default:
		return append(buf,
			0xC0|byte(c>>6&0x1F),
			0x80|byte(c&0x3F))
	}
}

// decodeModifiedUTF8 reverses encodeModifiedUTF8. A Java string may hold an
// unpaired surrogate, which a Go string cannot; each one decodes to U+FFFD.
// Malformed byte sequences are an error.
func decodeModifiedUTF8(p []byte) (string, error) {
	ascii := true
	for _, b := range p {
		if b == 0 || b >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(p), nil
	}
	chars := make([]uint16, 0, len(p))
	for i := 0; i < len(p); {
		b := p[i]
		switch b >> 4 {
		case 0, 1, 2, 3, 4, 5, 6, 7:
			chars = append(chars, uint16(b))
			i++
		case 12, 13:
			if i+1 >= len(p) || p[i+1]&0xC0 != 0x80 {
				return "", streamCorrupted("malformed input around byte %d", i)
			}
			chars = append(chars, uint16(b&0x1F)<<6|uint16(p[i+1]&0x3F))
			i += 2
		case 14:
			if i+2 >= len(p) || p[i+1]&0xC0 != 0x80 || p[i+2]&0xC0 != 0x80 {
				return "", streamCorrupted("malformed input around byte %d", i)
			}
			chars = append(chars, uint16(b&0x0F)<<12|uint16(p[i+1]&0x3F)<<6|uint16(p[i+2]&0x3F))
			i += 3
		default:
			return "", streamCorrupted("malformed input around byte %d", i)
		}
	}
	return string(utf16.Decode(chars)), nil
}
