// Package cpu implements a cycle-accurate 6502-family CPU core.
//
// The CPU never touches memory directly. It calls back into whatever
// integrates it (the bus) through Callbacks, and reports its own cycle
// count and interrupt-line sampling points rather than owning a clock.
package cpu

import "fmt"

// Flag is a single bit of the processor status register P.
type Flag uint8

const (
	FlagCarry     Flag = 1 << 0
	FlagZero      Flag = 1 << 1
	FlagInterrupt Flag = 1 << 2
	FlagDecimal   Flag = 1 << 3
	FlagBreak     Flag = 1 << 4
	FlagUnused    Flag = 1 << 5
	FlagOverflow  Flag = 1 << 6
	FlagNegative  Flag = 1 << 7
)

// AccessType tags the purpose of a single bus cycle, so the bus and any
// attached trace logger can distinguish a real access from scaffolding the
// 6502 performs for timing reasons alone. Every OnRead/OnWrite call the CPU
// makes carries one of these, per spec.md §4.1's per-cycle contract.
// AccessDMA never arrives through these callbacks — DMA runs while the CPU
// is halted, via OnHalt — but it is the bus's own tag for the accesses it
// performs on the CPU's behalf in that window, which is why the enum
// includes it here rather than in pkg/dma.
type AccessType int

const (
	AccessRead AccessType = iota
	AccessWrite
	AccessExecute
	AccessDummyRead
	AccessDummyWrite
	AccessDMA
)

func (a AccessType) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessExecute:
		return "execute"
	case AccessDummyRead:
		return "dummy-read"
	case AccessDummyWrite:
		return "dummy-write"
	case AccessDMA:
		return "dma"
	default:
		return "unknown"
	}
}

// Callbacks wires the CPU to its environment. The CPU holds no reference to
// a bus, cartridge, or any other component — only these function values —
// so it can never reach sideways into a peripheral. OnRead/OnWrite take the
// AccessType of the cycle they're servicing so a bus-level trace hook can
// tell a dummy access from a real one without guessing from call site.
type Callbacks struct {
	OnRead  func(addr uint16, access AccessType) uint8
	OnWrite func(addr uint16, val uint8, access AccessType)
	OnPeek  func(addr uint16) uint8
	OnHalt  func(nextAddr uint16)
}

type interruptKind int

const (
	interruptBRK interruptKind = iota
	interruptIRQ
	interruptNMI
	interruptReset
)

// ErrIllegalOpcode is returned by Step when the fetched opcode has no
// implementation. Real hardware either locks up or does something
// manufacturer-undocumented; this core treats it as fatal, per the
// documented error taxonomy.
var ErrIllegalOpcode = fmt.Errorf("illegal or unimplemented opcode")

// CPU is a MOS 6502-family processor core (NTSC variant, no decimal-mode
// arithmetic — see opADC in opcodes.go, which ADC and SBC share).
type CPU struct {
	PC uint16
	A  uint8
	X  uint8
	Y  uint8
	SP uint8
	P  uint8

	// Cycles counts every bus access (real or dummy) the CPU has performed
	// since the last PowerOn. It never resets on a soft Reset.
	Cycles uint64

	callbacks Callbacks

	nmiLine    bool
	nmiPending bool
	irqLine    bool
	haltQueued bool

	// instrAddr is the PC at which the instruction currently executing was
	// fetched, kept for diagnostics and trace logging only.
	instrAddr uint16
}

// New constructs a CPU wired to the given callbacks. Call PowerOn before
// the first Step.
func New(cb Callbacks) *CPU {
	return &CPU{callbacks: cb}
}

// PowerOn zeroes A/X/Y/SP and the cycle counter, sets only the unused flag
// bit, and runs the reset sequence. This models a cold power-up, not a
// press of the console's reset button — see Reset for that.
func (c *CPU) PowerOn() {
	c.PC, c.A, c.X, c.Y, c.SP, c.Cycles = 0, 0, 0, 0, 0, 0
	c.P = uint8(FlagUnused)
	c.Reset()
}

// Reset runs the 7-cycle reset sequence without clearing A/X/Y or the
// cycle counter (its 7 cycles are added to Cycles), matching how real 6502 hardware responds to its RESET
// line: the stack pointer is decremented three times with writes
// suppressed, the I flag is set, and PC is loaded from the reset vector.
func (c *CPU) Reset() {
	c.dummyRead(c.PC)
	c.handleInterrupt(interruptReset)
	c.nmiPending = false
}

// SetNMILine updates the CPU's view of the NMI line. NMI is edge
// triggered: only a false-to-true transition latches a pending NMI: it
// fires once, the next time Step checks for it, regardless of how long
// the line stays asserted afterward.
func (c *CPU) SetNMILine(asserted bool) {
	if asserted && !c.nmiLine {
		c.nmiPending = true
	}
	c.nmiLine = asserted
}

// SetIRQLine updates the CPU's view of the IRQ line. IRQ is level
// triggered: Step re-samples it every instruction boundary and services it
// whenever it is asserted and the I flag is clear.
func (c *CPU) SetIRQLine(asserted bool) {
	c.irqLine = asserted
}

// ScheduleHalt arranges for OnHalt to be invoked at the start of the next
// bus access that is not itself part of processing a previously scheduled
// halt. The DMA controller uses this to inject its halt-and-drain cycles
// between CPU instructions (or mid-instruction, between two of its bus
// accesses) without the CPU knowing anything about DMA.
func (c *CPU) ScheduleHalt() {
	c.haltQueued = true
}

// Tick accounts for one bus cycle consumed on the CPU's behalf without the
// CPU itself performing a read or write — used by the bus for the
// transfer cycles a DMA controller steals while the CPU is halted.
func (c *CPU) Tick() {
	c.Cycles++
}

// Step executes exactly one instruction, including any interrupt sequence
// that follows it, and returns ErrIllegalOpcode if the fetched opcode has
// no implementation.
func (c *CPU) Step() error {
	c.instrAddr = c.PC
	opcode := c.fetchOpcode()
	entry := opcodeTable[opcode]
	if entry.exec == nil {
		return fmt.Errorf("%w: $%02X at $%04X", ErrIllegalOpcode, opcode, c.instrAddr)
	}
	entry.exec(c, entry.mode)

	if c.nmiPending {
		c.dummyRead(c.PC)
		c.handleInterrupt(interruptNMI)
		c.nmiPending = false
	} else if c.irqLine && c.P&uint8(FlagInterrupt) == 0 {
		c.dummyRead(c.PC)
		c.handleInterrupt(interruptIRQ)
	}

	c.processHalt(c.PC)
	return nil
}

// handleInterrupt executes cycles 2-7 of a BRK/IRQ/NMI/reset sequence. The
// opcode fetch (for BRK) or the caller's dummy read (for IRQ/NMI) already
// accounted for cycle 1.
func (c *CPU) handleInterrupt(kind interruptKind) {
	c.dummyRead(c.PC)

	if kind != interruptReset {
		c.pushPC()
		b := uint8(0)
		if kind == interruptBRK {
			b = uint8(FlagBreak)
		}
		c.push(c.P | b | uint8(FlagUnused))
	} else {
		c.dummyPush()
		c.dummyPush()
		c.dummyPush()
	}

	var vec uint16
	switch kind {
	case interruptBRK, interruptIRQ:
		vec = 0xFFFE
	case interruptNMI:
		vec = 0xFFFA
	case interruptReset:
		vec = 0xFFFC
	}
	c.P |= uint8(FlagInterrupt)
	c.PC = c.readWord(vec)
}

// processHalt invokes OnHalt, exactly once, if a halt is pending. Every
// bus-facing helper (read, dummyRead) calls this first, which is how DMA
// manages to inject its transfer cycles mid-instruction without the CPU's
// opcode handlers knowing.
func (c *CPU) processHalt(nextAddr uint16) {
	if c.haltQueued {
		c.haltQueued = false
		c.callbacks.OnHalt(nextAddr)
	}
}

func (c *CPU) read(addr uint16) uint8 {
	c.processHalt(addr)
	c.Cycles++
	return c.callbacks.OnRead(addr, AccessRead)
}

func (c *CPU) write(addr uint16, val uint8) {
	c.Cycles++
	c.callbacks.OnWrite(addr, val, AccessWrite)
}

func (c *CPU) dummyRead(addr uint16) uint8 {
	c.processHalt(addr)
	c.Cycles++
	return c.callbacks.OnRead(addr, AccessDummyRead)
}

func (c *CPU) dummyWrite(addr uint16, val uint8) {
	c.Cycles++
	c.callbacks.OnWrite(addr, val, AccessDummyWrite)
}

func (c *CPU) peek(addr uint16) uint8 {
	return c.callbacks.OnPeek(addr)
}

// readWord reads a little-endian word without crossing a page boundary:
// the high byte wraps within the same page as the low byte. This
// faithfully reproduces the indirect-JMP page-wrap bug real 6502 hardware
// has, since every vector and indirect-addressing fetch goes through here.
func (c *CPU) readWord(addr uint16) uint16 {
	lo := c.read(addr)
	hi := c.read((addr&0xFF00)|((addr+1)&0x00FF))
	return uint16(lo) | uint16(hi)<<8
}

func (c *CPU) fetchOpcode() uint8 {
	val := c.callbacks.OnRead(c.PC, AccessExecute)
	c.Cycles++
	c.PC++
	return val
}

func (c *CPU) fetchByte() uint8 {
	val := c.read(c.PC)
	c.PC++
	return val
}

func (c *CPU) fetchWord() uint16 {
	lo := c.fetchByte()
	hi := c.fetchByte()
	return uint16(lo) | uint16(hi)<<8
}

func (c *CPU) stackAddr() uint16 {
	return 0x0100 + uint16(c.SP)
}

func (c *CPU) push(val uint8) {
	c.write(c.stackAddr(), val)
	c.SP--
}

func (c *CPU) pop() uint8 {
	c.SP++
	return c.read(c.stackAddr())
}

func (c *CPU) dummyPush() {
	c.dummyRead(c.stackAddr())
	c.SP--
}

func (c *CPU) pushPC() {
	c.push(uint8(c.PC >> 8))
	c.push(uint8(c.PC))
}

func (c *CPU) popPC() {
	lo := c.pop()
	hi := c.pop()
	c.PC = uint16(lo) | uint16(hi)<<8
}

// popP restores P from the stack, forcing the unused bit set and the break
// bit clear: those two bits never really exist in the stacked copy that
// RTI/PLP read back.
func (c *CPU) popP() {
	c.P = (c.pop() &^ uint8(FlagBreak)) | uint8(FlagUnused)
}

func (c *CPU) updateNZ(val uint8) {
	c.P &^= uint8(FlagZero | FlagNegative)
	c.P |= val & uint8(FlagNegative)
	if val == 0 {
		c.P |= uint8(FlagZero)
	}
}

// Disassemble renders the instruction at addr into a short mnemonic form
// using the Peek callback, and returns the instruction's length in bytes.
// It performs no real bus access and has no side effects.
func (c *CPU) Disassemble(addr uint16) (string, int) {
	opcode := c.peek(addr)
	op1 := c.peek(addr + 1)
	op2 := c.peek(addr + 2)
	entry := opcodeTable[opcode]
	name := entry.name
	if name == "" {
		name = "???"
	}
	switch entry.mode {
	case modeImplied, modeAccumulator:
		return fmt.Sprintf("$%04X  %02X        %-4s", addr, opcode, name), 1
	case modeImmediate:
		return fmt.Sprintf("$%04X  %02X %02X     %-4s #$%02X", addr, opcode, op1, name, op1), 2
	case modeZeroPage:
		return fmt.Sprintf("$%04X  %02X %02X     %-4s $%02X", addr, opcode, op1, name, op1), 2
	case modeZeroPageX:
		return fmt.Sprintf("$%04X  %02X %02X     %-4s $%02X,X", addr, opcode, op1, name, op1), 2
	case modeZeroPageY:
		return fmt.Sprintf("$%04X  %02X %02X     %-4s $%02X,Y", addr, opcode, op1, name, op1), 2
	case modeRelative:
		target := addr + 2 + uint16(int8(op1))
		return fmt.Sprintf("$%04X  %02X %02X     %-4s $%04X", addr, opcode, op1, name, target), 2
	case modeAbsolute:
		return fmt.Sprintf("$%04X  %02X %02X %02X  %-4s $%04X", addr, opcode, op1, op2, name, uint16(op2)<<8|uint16(op1)), 3
	case modeAbsoluteX:
		return fmt.Sprintf("$%04X  %02X %02X %02X  %-4s $%04X,X", addr, opcode, op1, op2, name, uint16(op2)<<8|uint16(op1)), 3
	case modeAbsoluteY:
		return fmt.Sprintf("$%04X  %02X %02X %02X  %-4s $%04X,Y", addr, opcode, op1, op2, name, uint16(op2)<<8|uint16(op1)), 3
	case modeIndirect:
		return fmt.Sprintf("$%04X  %02X %02X %02X  %-4s ($%04X)", addr, opcode, op1, op2, name, uint16(op2)<<8|uint16(op1)), 3
	case modeIndexedIndirect:
		return fmt.Sprintf("$%04X  %02X %02X     %-4s ($%02X,X)", addr, opcode, op1, name, op1), 2
	case modeIndirectIndexed:
		return fmt.Sprintf("$%04X  %02X %02X     %-4s ($%02X),Y", addr, opcode, op1, name, op1), 2
	default:
		return fmt.Sprintf("$%04X  %02X        %-4s", addr, opcode, name), 1
	}
}
