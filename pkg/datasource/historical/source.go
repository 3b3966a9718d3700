package historical

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"unsafe"

	"golang.org/x/exp/mmap"
)

var ErrEof = errors.New("EOF")

// Source is a memory mapped file of fixed size T records.
type Source[T any] struct {
	dataSourceName string
	reader         *mmap.ReaderAt
	bufferPool     *sync.Pool
	entrySize      int64
}

func NewSource[T any](dataSourceName string) *Source[T] {
	entrySize := int64(unsafe.Sizeof(*new(T)))
	return &Source[T]{
		dataSourceName: dataSourceName,
		entrySize:      entrySize,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buffer := make([]byte, entrySize)
				return &buffer
			},
		},
	}
}

func (s *Source[T]) Open() error {
	if s.entrySize == 0 {
		return fmt.Errorf("size of record type is zero")
	}

	reader, err := mmap.Open(s.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open data source %q: %w", s.dataSourceName, err)
	}
	if int64(reader.Len())%s.entrySize != 0 {
		_ = reader.Close()
		return fmt.Errorf("data source %q size %d is not a multiple of entry size %d", s.dataSourceName, reader.Len(), s.entrySize)
	}

	s.reader = reader
	return nil
}

func (s *Source[T]) Close() error {
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	s.reader = nil
	return err
}

func (s *Source[T]) Read(index int64, data *T) error {
	buffer := s.bufferPool.Get().(*[]byte)
	defer s.bufferPool.Put(buffer)

	n, err := s.reader.ReadAt(*buffer, index*s.entrySize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("unable to read entry %d: %w", index, err)
	}
	if n < len(*buffer) {
		return ErrEof
	}

	*data = *(*T)(unsafe.Pointer(&(*buffer)[0])) // #nosec G103
	return nil
}

func (s *Source[T]) EntryCount() int64 {
	if s.reader == nil {
		return 0
	}
	return int64(s.reader.Len()) / s.entrySize
}

// Search returns the smallest index in [0, EntryCount()) for which f is true, assuming f is
// false then true over the file, or EntryCount() if there is none.
func (s *Source[T]) Search(f func(*T) bool) (int64, error) {
	var entry T

	low, high := int64(0), s.EntryCount()
	for low < high {
		mid := int64(uint64(low+high) >> 1)
		if err := s.Read(mid, &entry); err != nil {
			return 0, err
		}
		if f(&entry) {
			high = mid
		} else {
			low = mid + 1
		}
	}
	return low, nil
}
