package compute

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/google/uuid"
)

// Buffer is a fixed-length device buffer of T. Its storage is only touched by
// commands on the device stream, or by the host after Device.Wait.
type Buffer[T any] struct {
	id     uuid.UUID
	label  string
	device *Device

	mu       sync.Mutex
	data     []T
	released bool
}

// NewBuffer allocates count zeroed elements, charging the device memory budget.
func NewBuffer[T any](d *Device, label string, count int) (*Buffer[T], error) {
	if count <= 0 {
		return nil, fmt.Errorf("allocate %s: invalid element count %d", label, count)
	}
	var zero T
	bytes := uint64(count) * uint64(unsafe.Sizeof(zero))
	id, err := d.reserve(label, bytes)
	if err != nil {
		return nil, err
	}
	return &Buffer[T]{
		id:     id,
		label:  label,
		device: d,
		data:   make([]T, count),
	}, nil
}

func (b *Buffer[T]) ID() uuid.UUID { return b.id }
func (b *Buffer[T]) Label() string { return b.label }

func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Released reports whether Release has run. A nil buffer counts as released.
func (b *Buffer[T]) Released() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

// View returns the backing slice for a kernel to capture at submission time.
// Commands already queued keep their own reference, so Release never pulls memory from under them.
func (b *Buffer[T]) View() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

// Release frees the buffer. Nil-safe and idempotent.
func (b *Buffer[T]) Release() {
	if b == nil {
		return
	}
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return
	}
	b.released = true
	b.data = nil
	b.mu.Unlock()
	b.device.free(b.id)
}

// Free releases *buf and clears the handle.
func Free[T any](buf **Buffer[T]) {
	if buf == nil || *buf == nil {
		return
	}
	(*buf).Release()
	*buf = nil
}

// WriteBuffer queues a copy of src into dst starting at element offset.
// src is copied at call time, like a queue write on a GPU.
func WriteBuffer[T any](d *Device, dst *Buffer[T], offset int, src []T) error {
	if dst.Released() {
		return fmt.Errorf("write %s: buffer released", dst.label)
	}
	view := dst.View()
	if offset < 0 || offset+len(src) > len(view) {
		return fmt.Errorf("write %s: range [%d,%d) outside %d elements", dst.label, offset, offset+len(src), len(view))
	}
	staged := append([]T(nil), src...)
	return d.Submit("write "+dst.label, func() {
		copy(view[offset:], staged)
	})
}

// ReadBuffer fences the stream and returns a host copy of the buffer contents.
func ReadBuffer[T any](d *Device, src *Buffer[T]) ([]T, error) {
	if err := d.Wait(); err != nil {
		return nil, err
	}
	if src.Released() {
		return nil, fmt.Errorf("read %s: buffer released", src.label)
	}
	return append([]T(nil), src.View()...), nil
}
