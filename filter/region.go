package filter

import (
	"github.com/pkg/errors"
)

// ErrMalformedRegion is returned when a filter region cannot be decoded.
var ErrMalformedRegion = errors.New("malformed filter region")

// ErrFilterCount is returned when a region does not hold exactly the number
// of filters its user requires.
var ErrFilterCount = errors.New("unexpected number of filters")

const filterHeaderWords = 4

const flagLatching = 0x1

// DecodeRegion parses a filter region. Word 0 is the number of filters. Each
// filter is a four word header (data size in words, method, width, flags)
// followed by its data words.
func DecodeRegion(words []uint32) ([]Params, error) {
	if len(words) < 1 {
		return nil, errors.Wrap(ErrMalformedRegion, "missing filter count")
	}

	n := int(words[0])
	if n > (len(words)-1)/filterHeaderWords {
		return nil, errors.Wrapf(ErrMalformedRegion,
			"%d filters cannot fit in %d words", n, len(words))
	}

	params := make([]Params, 0, n)
	offset := 1

	for i := 0; i < n; i++ {
		if offset+filterHeaderWords > len(words) {
			return nil, errors.Wrapf(ErrMalformedRegion,
				"filter %d header truncated", i)
		}

		size := int(words[offset])
		p := Params{
			Method:   Method(words[offset+1]),
			Width:    int(words[offset+2]),
			Latching: words[offset+3]&flagLatching != 0,
		}
		offset += filterHeaderWords

		if offset+size > len(words) {
			return nil, errors.Wrapf(ErrMalformedRegion,
				"filter %d data truncated", i)
		}

		if err := p.decodeData(words[offset : offset+size]); err != nil {
			return nil, errors.Wrapf(err, "filter %d", i)
		}

		params = append(params, p)
		offset += size
	}

	return params, nil
}

func (p *Params) decodeData(data []uint32) error {
	switch p.Method {
	case MethodNone:
	case MethodLowpass:
		if len(data) != 2 {
			return errors.Wrapf(ErrMalformedRegion,
				"lowpass needs 2 data words, got %d", len(data))
		}
		p.A = FromWord(data[0])
		p.B = FromWord(data[1])
	case MethodLinear:
		if len(data) < 1 || len(data) != 1+2*int(data[0]) {
			return errors.Wrapf(ErrMalformedRegion,
				"linear filter data of %d words", len(data))
		}
		order := int(data[0])
		p.Terms = make([]LinearTerm, order)
		for k := 0; k < order; k++ {
			p.Terms[k] = LinearTerm{
				NegA: FromWord(data[1+2*k]),
				B:    FromWord(data[2+2*k]),
			}
		}
	default:
		return errors.Wrapf(ErrMalformedRegion, "unknown %s", p.Method)
	}

	return nil
}

// EncodeRegion lays out filters in the format read by DecodeRegion.
func EncodeRegion(params []Params) []uint32 {
	words := []uint32{uint32(len(params))}

	for _, p := range params {
		var flags uint32
		if p.Latching {
			flags |= flagLatching
		}

		words = append(words,
			uint32(p.dataWords()), uint32(p.Method), uint32(p.Width), flags)

		switch p.Method {
		case MethodLowpass:
			words = append(words, p.A.Word(), p.B.Word())
		case MethodLinear:
			words = append(words, uint32(len(p.Terms)))
			for _, t := range p.Terms {
				words = append(words, t.NegA.Word(), t.B.Word())
			}
		}
	}

	return words
}
