package compute

import "fmt"

// AppendBuffer is a bounded output channel for many parallel producers: a
// preallocated Buffer plus a saturating counter of the elements written so far.
type AppendBuffer[T any] struct {
	*Buffer[T]
	counter *Counter
}

func NewAppendBuffer[T any](d *Device, label string, capacity int) (*AppendBuffer[T], error) {
	buf, err := NewBuffer[T](d, label, capacity)
	if err != nil {
		return nil, err
	}
	return &AppendBuffer[T]{Buffer: buf, counter: NewCounter(uint32(capacity))}, nil
}

// Appender returns the kernel-side append function bound to the current storage.
// Excess elements are dropped; no slot is ever written twice.
func (a *AppendBuffer[T]) Appender() func(v T) bool {
	data := a.View()
	counter := a.counter
	return func(v T) bool {
		idx, ok := counter.Increment()
		if !ok || int(idx) >= len(data) {
			return false
		}
		data[idx] = v
		return true
	}
}

func (a *AppendBuffer[T]) Counter() *Counter { return a.counter }

// SetCounterValue queues a reset of the element count.
func (a *AppendBuffer[T]) SetCounterValue(d *Device, v uint32) error {
	if a.Released() {
		return fmt.Errorf("set counter %s: buffer released", a.label)
	}
	counter := a.counter
	return d.Submit("set counter "+a.label, func() {
		counter.Store(v)
	})
}

// CopyCount queues a copy of the element count into dst[index], entirely on the stream.
func CopyCount[T any](d *Device, src *AppendBuffer[T], dst *Buffer[uint32], index int) error {
	if src.Released() || dst.Released() {
		return fmt.Errorf("copy count %s -> %s: buffer released", src.label, dst.label)
	}
	view := dst.View()
	if index < 0 || index >= len(view) {
		return fmt.Errorf("copy count %s -> %s: index %d outside %d elements", src.label, dst.label, index, len(view))
	}
	counter := src.counter
	return d.Submit("copy count "+src.label, func() {
		view[index] = counter.Load()
	})
}

// Items returns a host copy of the written elements after fencing the stream.
func Items[T any](d *Device, a *AppendBuffer[T]) ([]T, error) {
	if err := d.Wait(); err != nil {
		return nil, err
	}
	if a.Released() {
		return nil, fmt.Errorf("read %s: buffer released", a.label)
	}
	n := a.counter.Load()
	return append([]T(nil), a.View()[:n]...), nil
}

// FreeAppend releases *buf and clears the handle.
func FreeAppend[T any](buf **AppendBuffer[T]) {
	if buf == nil || *buf == nil {
		return
	}
	(*buf).Release()
	*buf = nil
}
