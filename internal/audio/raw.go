package audio

import (
	"bytes"
	"context"
)

const (
	id3v2HeaderLen = 10
	id3v1TagLen    = 128
)

// rawAssembler appends MP3 frame streams back to back. Tag blocks that would
// otherwise land between frames are dropped: the ID3v2 header of every segment
// but the first and the ID3v1 trailer of every segment but the last.
type rawAssembler struct{}

func NewRawAssembler() Assembler { return rawAssembler{} }

func (rawAssembler) Assemble(ctx context.Context, segments [][]byte) ([]byte, error) {
	segments = nonEmpty(segments)
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}
	if len(segments) == 1 {
		return append([]byte(nil), segments[0]...), nil
	}
	var buf bytes.Buffer
	last := len(segments) - 1
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 {
			seg = stripID3v2(seg)
		}
		if i < last {
			seg = stripID3v1(seg)
		}
		buf.Write(seg)
	}
	if buf.Len() == 0 {
		return nil, ErrNoSegments
	}
	return buf.Bytes(), nil
}

// stripID3v2 removes a leading ID3v2 tag, including its footer when flagged.
func stripID3v2(seg []byte) []byte {
	if len(seg) < id3v2HeaderLen || !bytes.HasPrefix(seg, []byte("ID3")) {
		return seg
	}
	size := 0
	for _, b := range seg[6:10] {
		if b&0x80 != 0 {
			return seg
		}
		size = size<<7 | int(b)
	}
	total := id3v2HeaderLen + size
	if seg[5]&0x10 != 0 {
		total += id3v2HeaderLen
	}
	if total > len(seg) {
		return seg
	}
	return seg[total:]
}

func stripID3v1(seg []byte) []byte {
	if len(seg) < id3v1TagLen {
		return seg
	}
	tail := seg[len(seg)-id3v1TagLen:]
	if !bytes.HasPrefix(tail, []byte("TAG")) {
		return seg
	}
	return seg[:len(seg)-id3v1TagLen]
}
