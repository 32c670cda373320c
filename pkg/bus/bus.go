// Package bus implements the console's CPU-side memory map: the single
// component that actually holds references to every peripheral, and the
// only place interrupt lines get sampled and pushed back into the CPU.
package bus

import (
	"github.com/nesgo/nesgo/pkg/cpu"
	"github.com/nesgo/nesgo/pkg/dma"
	"github.com/nesgo/nesgo/pkg/logger"
)

// PPU is the subset of the picture processing unit the bus drives.
type PPU interface {
	ReadRegister(addr uint16) uint8
	WriteRegister(addr uint16, value uint8)
	// Tick advances the PPU by exactly one dot.
	Tick()
	// NMIActive reports the logical AND of the vblank flag and PPUCTRL's
	// NMI-enable bit: this, not vblank alone, is what drives the CPU's NMI
	// line.
	NMIActive() bool
}

// APU is the subset of the audio processing unit the bus drives.
type APU interface {
	ReadRegister(addr uint16) uint8
	WriteRegister(addr uint16, value uint8)
	// Tick advances the APU by exactly one CPU cycle.
	Tick()
	// IRQPending reports the OR of the frame-sequencer IRQ and the DMC
	// channel's IRQ.
	IRQPending() bool
	// CycleIsPut reports whether the current APU cycle is the second half
	// of an APU clock, used by DMA to align its transfer start.
	CycleIsPut() bool
	// DeliverDMCByte hands a DMA-fetched sample byte to the DMC channel.
	DeliverDMCByte(val uint8)
	// DMCRequest reports a pending DMC DMA fetch address, if any.
	DMCRequest() (addr uint16, pending bool)
}

// Cartridge is the subset of the cartridge/mapper the bus drives directly.
// The PPU holds its own reference to the same Cartridge for CHR/nametable
// access, since that half of the address space never touches the CPU bus.
type Cartridge interface {
	ReadPRG(addr uint16) uint8
	WritePRG(addr uint16, value uint8)
	IsIRQPending() bool
	ClearIRQ()
}

// Controller is the subset of the standard controller the bus drives.
type Controller interface {
	Read() uint8
	Write(value uint8)
}

// CPU is the subset of the processor core the bus drives.
type CPU interface {
	SetNMILine(asserted bool)
	SetIRQLine(asserted bool)
	ScheduleHalt()
	Tick()
}

// Bus is the sole integrator: it is the only component holding references
// to every other component, and the only place per-cycle side effects
// (PPU/APU ticking, interrupt-line sampling, DMA dispatch) happen.
type Bus struct {
	RAM [2048]uint8

	cpu        CPU
	ppu        PPU
	apu        APU
	cart       Cartridge
	controller Controller
	dma        *dma.Controller
}

// New constructs a Bus with no components attached yet; wire each one with
// its Set* method before powering on the CPU.
func New() *Bus {
	return &Bus{dma: dma.New()}
}

func (b *Bus) SetCPU(c CPU)                 { b.cpu = c }
func (b *Bus) SetPPU(p PPU)                 { b.ppu = p }
func (b *Bus) SetAPU(a APU)                 { b.apu = a }
func (b *Bus) SetCartridge(cart Cartridge)  { b.cart = cart }
func (b *Bus) SetController(ctrl Controller) { b.controller = ctrl }

// CPUCallbacks returns the Callbacks a cpu.CPU should be constructed with
// so that every one of its accesses flows through this bus.
func (b *Bus) CPUCallbacks() (onRead func(uint16, cpu.AccessType) uint8, onWrite func(uint16, uint8, cpu.AccessType), onPeek func(uint16) uint8, onHalt func(uint16)) {
	return b.cpuRead, b.cpuWrite, b.peek, b.onHalt
}

// cpuRead services one CPU-originated read: dispatch, trace the access by
// its type, then advance the rest of the system by one CPU cycle.
func (b *Bus) cpuRead(addr uint16, access cpu.AccessType) uint8 {
	v := b.readByte(addr)
	logger.LogCPUAccess(addr, access.String(), v)
	b.afterCycle()
	return v
}

func (b *Bus) cpuWrite(addr uint16, val uint8, access cpu.AccessType) {
	logger.LogCPUAccess(addr, access.String(), val)
	b.writeByte(addr, val)
	b.afterCycle()
}

// onHalt runs whenever the CPU processes a halt the DMA controller
// scheduled. Every access DMA performs here still flows through the same
// dispatch as a normal CPU access, and still costs a CPU cycle — DMA
// steals bus cycles, it does not get free ones.
func (b *Bus) onHalt(nextAddr uint16) {
	readByte := func(addr uint16) uint8 {
		v := b.readByte(addr)
		logger.LogCPUAccess(addr, cpu.AccessDMA.String(), v)
		b.cpu.Tick()
		b.afterCycle()
		return v
	}
	writeByte := func(addr uint16, val uint8) {
		logger.LogCPUAccess(addr, cpu.AccessDMA.String(), val)
		b.writeByte(addr, val)
		b.cpu.Tick()
		b.afterCycle()
	}
	b.dma.Process(readByte, writeByte, b.apu.DeliverDMCByte, b.apu.CycleIsPut(), nextAddr)
}

// afterCycle runs the fixed per-bus-cycle ordering: tick the APU once,
// tick the PPU three times (it runs at 3x the CPU clock), then resample
// the NMI and IRQ lines into the CPU.
func (b *Bus) afterCycle() {
	b.apu.Tick()
	b.ppu.Tick()
	b.ppu.Tick()
	b.ppu.Tick()

	if addr, pending := b.apu.DMCRequest(); pending && !b.dma.Pending() {
		b.dma.ScheduleDMC(addr, b.scheduleHalt)
	}

	b.cpu.SetNMILine(b.ppu.NMIActive())
	b.cpu.SetIRQLine(b.cart.IsIRQPending() || b.apu.IRQPending())
}

// readByte dispatches a raw CPU-side read with no side effects beyond the
// access itself; afterCycle is layered on separately so DMA can reuse this
// without double-charging a cycle.
func (b *Bus) readByte(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		return b.RAM[addr&0x07FF]
	case addr < 0x4000:
		return b.ppu.ReadRegister(0x2000 + (addr & 0x0007))
	case addr == 0x4016:
		return b.controller.Read()
	case addr == 0x4017:
		return b.apu.ReadRegister(addr)
	case addr < 0x4020:
		return b.apu.ReadRegister(addr)
	case addr >= 0x6000:
		return b.cart.ReadPRG(addr)
	default:
		return 0
	}
}

func (b *Bus) writeByte(addr uint16, val uint8) {
	switch {
	case addr < 0x2000:
		b.RAM[addr&0x07FF] = val
	case addr < 0x4000:
		b.ppu.WriteRegister(0x2000+(addr&0x0007), val)
	case addr == 0x4014:
		b.dma.ScheduleOAM(val, b.scheduleHalt)
	case addr == 0x4016:
		b.controller.Write(val)
	case addr < 0x4020:
		b.apu.WriteRegister(addr, val)
	case addr >= 0x6000:
		b.cart.WritePRG(addr, val)
	default:
		logger.LogMapper("bus: unmapped write $%04X = $%02X", addr, val)
	}
}

func (b *Bus) scheduleHalt() {
	b.cpu.ScheduleHalt()
}

// peek reads a byte for disassembly/debugging without triggering any side
// effect: no PPU register latching, no mapper bank-switch trigger.
func (b *Bus) peek(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		return b.RAM[addr&0x07FF]
	case addr >= 0x6000:
		return b.cart.ReadPRG(addr)
	default:
		return 0
	}
}

// Peek exposes the same side-effect-free read peek uses internally, for
// hosts and tests that want to inspect RAM/PRG contents without disturbing
// PPU register latches or mapper state.
func (b *Bus) Peek(addr uint16) uint8 {
	return b.peek(addr)
}

// WriteTestByte writes directly into RAM, bypassing the CPU-cycle dispatch
// in writeByte. Tests use this to seed memory without stepping the CPU.
func (b *Bus) WriteTestByte(addr uint16, val uint8) {
	if addr < 0x2000 {
		b.RAM[addr&0x07FF] = val
	}
}
