package mem

import (
	"sync"

	"github.com/pkg/errors"
)

// Sizes of memory regions.
const (
	KB uint64 = 1 << 10
	MB uint64 = 1 << 20
	GB uint64 = 1 << 30
)

// ErrOutOfRange is returned when an access touches bytes beyond the capacity
// of a storage.
var ErrOutOfRange = errors.New("access beyond the storage capacity")

// A Storage keeps the data of a bulk memory region such as SDRAM.
//
// The storage implementation manages the storage in units, similar to pages.
// Units that are never touched by Write are not allocated and read as zero.
type Storage struct {
	sync.RWMutex

	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity
func NewStorage(capacity uint64) *Storage {
	return &Storage{
		unitSize: 4 * KB,
		capacity: capacity,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the number of bytes the storage can hold.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) rangeMustFit(address, length uint64) error {
	if address+length < address || address+length > s.capacity {
		return errors.Wrapf(ErrOutOfRange,
			"address 0x%x, length %d, capacity %d", address, length, s.capacity)
	}

	return nil
}

func (s *Storage) unitOf(address uint64) (base, offset uint64) {
	offset = address % s.unitSize
	base = address - offset

	return base, offset
}

// Read returns a copy of length bytes starting from address.
func (s *Storage) Read(address uint64, length uint64) ([]byte, error) {
	res := make([]byte, length)
	if err := s.ReadInto(address, res); err != nil {
		return nil, err
	}

	return res, nil
}

// ReadInto fills dst with the bytes starting from address. It does not
// allocate.
func (s *Storage) ReadInto(address uint64, dst []byte) error {
	length := uint64(len(dst))
	if err := s.rangeMustFit(address, length); err != nil {
		return err
	}

	s.RLock()
	defer s.RUnlock()

	done := uint64(0)
	for done < length {
		base, offset := s.unitOf(address + done)
		n := min(s.unitSize-offset, length-done)

		unit, ok := s.data[base]
		if ok {
			copy(dst[done:done+n], unit[offset:offset+n])
		} else {
			clear(dst[done : done+n])
		}

		done += n
	}

	return nil
}

// Write stores data starting from address.
func (s *Storage) Write(address uint64, data []byte) error {
	length := uint64(len(data))
	if err := s.rangeMustFit(address, length); err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()

	done := uint64(0)
	for done < length {
		base, offset := s.unitOf(address + done)
		n := min(s.unitSize-offset, length-done)

		unit, ok := s.data[base]
		if !ok {
			unit = make([]byte, s.unitSize)
			s.data[base] = unit
		}

		copy(unit[offset:offset+n], data[done:done+n])
		done += n
	}

	return nil
}
