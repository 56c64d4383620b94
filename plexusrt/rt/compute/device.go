package compute

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrOutOfMemory = errors.New("compute: out of device memory")
	ErrDeviceLost  = errors.New("compute: device closed")
)

// Limits bound what a Device will allocate and how wide a dispatch fans out.
type Limits struct {
	MaxBufferBytes uint64 // 0 = unlimited
	MaxTotalBytes  uint64 // 0 = unlimited
	Workers        int    // 0 = GOMAXPROCS
	QueueDepth     int    // pending commands before Submit blocks
}

func DefaultLimits() Limits {
	return Limits{
		MaxBufferBytes: 256 << 20,
		MaxTotalBytes:  1 << 30,
		QueueDepth:     64,
	}
}

type command struct {
	label string
	run   func()
	fence chan struct{}
}

// Allocation is one live buffer as seen by the device ledger.
type Allocation struct {
	ID    uuid.UUID
	Label string
	Bytes uint64
}

type Stats struct {
	Submitted  uint64
	Dispatches uint64
	Fences     uint64
	LiveBytes  uint64
}

// Device is a software compute device: commands run in submission order on a
// single executor goroutine, and each dispatch fans out across Workers goroutines.
type Device struct {
	Label  string
	limits Limits

	queue     chan command
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	submitMu  sync.RWMutex

	allocMu   sync.Mutex
	live      map[uuid.UUID]Allocation
	liveBytes uint64

	submitted  atomic.Uint64
	dispatches atomic.Uint64
	fences     atomic.Uint64
}

func NewDevice(label string, limits Limits) *Device {
	if limits.Workers <= 0 {
		limits.Workers = runtime.GOMAXPROCS(0)
	}
	if limits.QueueDepth <= 0 {
		limits.QueueDepth = 64
	}
	d := &Device{
		Label:  label,
		limits: limits,
		queue:  make(chan command, limits.QueueDepth),
		done:   make(chan struct{}),
		live:   make(map[uuid.UUID]Allocation),
	}
	go d.execute()
	return d
}

func (d *Device) Limits() Limits { return d.limits }

func (d *Device) execute() {
	defer close(d.done)
	for cmd := range d.queue {
		if cmd.run != nil {
			cmd.run()
		}
		if cmd.fence != nil {
			close(cmd.fence)
		}
	}
}

func (d *Device) enqueue(cmd command) error {
	d.submitMu.RLock()
	defer d.submitMu.RUnlock()
	if d.closed.Load() {
		return fmt.Errorf("%s: %w", cmd.label, ErrDeviceLost)
	}
	d.queue <- cmd
	d.submitted.Add(1)
	return nil
}

// Submit appends a host-built command to the stream without waiting for it.
func (d *Device) Submit(label string, run func()) error {
	return d.enqueue(command{label: label, run: run})
}

// Dispatch runs kernel once per invocation id in [0, groups*groupSize) on the stream.
// Invocations past count are skipped, like a bounds-checked compute shader.
func (d *Device) Dispatch(label string, groups, groupSize, count uint32, kernel func(id uint32)) error {
	workers := d.limits.Workers
	return d.enqueue(command{label: label, run: func() {
		d.dispatches.Add(1)
		var g errgroup.Group
		g.SetLimit(workers)
		for group := uint32(0); group < groups; group++ {
			first := group * groupSize
			g.Go(func() error {
				for local := uint32(0); local < groupSize; local++ {
					id := first + local
					if id >= count {
						break
					}
					kernel(id)
				}
				return nil
			})
		}
		_ = g.Wait()
	}})
}

// Wait blocks until every command submitted before it has completed.
// This is the only host/device synchronization point.
func (d *Device) Wait() error {
	fence := make(chan struct{})
	if err := d.enqueue(command{label: "fence", fence: fence}); err != nil {
		return err
	}
	d.fences.Add(1)
	<-fence
	return nil
}

// Close drains the stream and stops the executor. Safe to call more than once.
func (d *Device) Close() {
	d.closeOnce.Do(func() {
		d.submitMu.Lock()
		d.closed.Store(true)
		close(d.queue)
		d.submitMu.Unlock()
		<-d.done
	})
}

func (d *Device) Closed() bool { return d.closed.Load() }

func (d *Device) reserve(label string, bytes uint64) (uuid.UUID, error) {
	if d.closed.Load() {
		return uuid.Nil, fmt.Errorf("allocate %s: %w", label, ErrDeviceLost)
	}
	if d.limits.MaxBufferBytes > 0 && bytes > d.limits.MaxBufferBytes {
		return uuid.Nil, fmt.Errorf("allocate %s (%d bytes, max %d): %w", label, bytes, d.limits.MaxBufferBytes, ErrOutOfMemory)
	}
	d.allocMu.Lock()
	defer d.allocMu.Unlock()
	if d.limits.MaxTotalBytes > 0 && d.liveBytes+bytes > d.limits.MaxTotalBytes {
		return uuid.Nil, fmt.Errorf("allocate %s (%d bytes, %d live): %w", label, bytes, d.liveBytes, ErrOutOfMemory)
	}
	id := uuid.New()
	d.live[id] = Allocation{ID: id, Label: label, Bytes: bytes}
	d.liveBytes += bytes
	return id, nil
}

func (d *Device) free(id uuid.UUID) {
	d.allocMu.Lock()
	defer d.allocMu.Unlock()
	if a, ok := d.live[id]; ok {
		d.liveBytes -= a.Bytes
		delete(d.live, id)
	}
}

// Allocations lists live buffers.
func (d *Device) Allocations() []Allocation {
	d.allocMu.Lock()
	defer d.allocMu.Unlock()
	out := make([]Allocation, 0, len(d.live))
	for _, a := range d.live {
		out = append(out, a)
	}
	return out
}

// HasAllocation reports whether a live buffer carries the given label.
func (d *Device) HasAllocation(label string) bool {
	for _, a := range d.Allocations() {
		if a.Label == label {
			return true
		}
	}
	return false
}

func (d *Device) Stats() Stats {
	d.allocMu.Lock()
	live := d.liveBytes
	d.allocMu.Unlock()
	return Stats{
		Submitted:  d.submitted.Load(),
		Dispatches: d.dispatches.Load(),
		Fences:     d.fences.Load(),
		LiveBytes:  live,
	}
}
