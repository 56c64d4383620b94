package pipeline

import (
	"fmt"

	"github.com/gekko3d/plexus/plexusrt/rt/compute"
	"github.com/gekko3d/plexus/plexusrt/rt/core"
)

const DrawArgsBufferLabel = "DrawLinesIndirectArgs"

// IndirectDrawCoordinator keeps the line draw arguments on the device so that the
// draw never waits on the host.
type IndirectDrawCoordinator struct {
	device  *compute.Device
	log     core.Logger
	lines   *compute.AppendBuffer[core.LineRecord] // borrowed
	args    *compute.Buffer[uint32]
	enabled bool
}

func NewIndirectDrawCoordinator(device *compute.Device, log core.Logger, lines *compute.AppendBuffer[core.LineRecord]) (*IndirectDrawCoordinator, error) {
	if log == nil {
		log = core.NopLogger()
	}
	c := &IndirectDrawCoordinator{device: device, log: log, lines: lines}
	if lines == nil || lines.Released() {
		log.Errorf("indirect draw disabled: no line buffer")
		return c, fmt.Errorf("indirect draw: line buffer unavailable")
	}
	args, err := compute.NewBuffer[uint32](device, DrawArgsBufferLabel, 4)
	if err != nil {
		log.Errorf("indirect draw disabled: %v", err)
		return c, fmt.Errorf("indirect draw: %w", err)
	}
	c.args = args
	c.enabled = true
	return c, nil
}

// PrepareDrawArgs writes the {0,1,0,0} template and copies the emitted line count
// into slot 0, both as stream commands.
func (c *IndirectDrawCoordinator) PrepareDrawArgs() error {
	if !c.enabled {
		return nil
	}
	template := core.DrawArgsTemplate.Words()
	if err := compute.WriteBuffer(c.device, c.args, 0, template[:]); err != nil {
		return err
	}
	return compute.CopyCount(c.device, c.lines, c.args, 0)
}

// ReadBackCount fences the stream and returns the primitive count. It stalls the
// caller and is never part of the draw path.
func (c *IndirectDrawCoordinator) ReadBackCount() (uint32, error) {
	args, err := c.ReadBackArgs()
	return args.PrimitiveCount, err
}

func (c *IndirectDrawCoordinator) ReadBackArgs() (core.IndirectArgs, error) {
	if !c.enabled {
		return core.IndirectArgs{}, nil
	}
	words, err := compute.ReadBuffer(c.device, c.args)
	if err != nil {
		return core.IndirectArgs{}, fmt.Errorf("read back draw args: %w", err)
	}
	return core.IndirectArgsFromWords([4]uint32(words)), nil
}

func (c *IndirectDrawCoordinator) Args() *compute.Buffer[uint32] { return c.args }
func (c *IndirectDrawCoordinator) Enabled() bool                 { return c.enabled }

func (c *IndirectDrawCoordinator) Release() {
	compute.Free(&c.args)
	c.lines = nil
	c.enabled = false
}
