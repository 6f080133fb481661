package rowtable

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrMalformedBlob is returned when a table blob cannot be decoded.
var ErrMalformedBlob = errors.New("malformed row table blob")

const entryWords = 4

// DecodeBlob parses a table blob: one word holding the entry count n followed
// by n records of key, mask, block offset and neuron mask.
func DecodeBlob(words []uint32) ([]Entry, error) {
	if len(words) < 1 {
		return nil, errors.Wrap(ErrMalformedBlob, "missing entry count")
	}

	n := int(words[0])
	if len(words)-1 < n*entryWords {
		return nil, errors.Wrapf(ErrMalformedBlob,
			"%d entries declared, %d words present", n, len(words)-1)
	}

	entries := make([]Entry, n)
	for i := range entries {
		r := words[1+i*entryWords:]
		entries[i] = Entry{
			Key:         r[0],
			Mask:        r[1],
			BlockOffset: r[2],
			NeuronMask:  r[3],
		}
	}

	return entries, nil
}

// EncodeBlob lays out entries in the format read by DecodeBlob.
func EncodeBlob(entries []Entry) []uint32 {
	words := make([]uint32, 0, 1+len(entries)*entryWords)
	words = append(words, uint32(len(entries)))

	for _, e := range entries {
		words = append(words, e.Key, e.Mask, e.BlockOffset, e.NeuronMask)
	}

	return words
}

// WordsFromBytes reads little-endian words. Trailing bytes that do not fill a
// word are ignored.
func WordsFromBytes(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}

	return words
}

// BytesFromWords writes words in little-endian order.
func BytesFromWords(words []uint32) []byte {
	b := make([]byte, 0, len(words)*4)
	for _, w := range words {
		b = binary.LittleEndian.AppendUint32(b, w)
	}

	return b
}
