package cpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeBus is a flat 64KB address space with no mapper, mirroring, or
// peripherals, just enough to drive CPU-level tests in isolation.
type fakeBus struct {
	mem      [65536]uint8
	halts    int
	lastHalt uint16

	// accessLog records every OnRead/OnWrite access type in order, so tests
	// can assert the CPU tags dummy accesses distinctly from real ones.
	accessLog []AccessType
}

func newFakeBus() *fakeBus { return &fakeBus{} }

func (b *fakeBus) callbacks() Callbacks {
	return Callbacks{
		OnRead: func(addr uint16, access AccessType) uint8 {
			b.accessLog = append(b.accessLog, access)
			return b.mem[addr]
		},
		OnWrite: func(addr uint16, val uint8, access AccessType) {
			b.accessLog = append(b.accessLog, access)
			b.mem[addr] = val
		},
		OnPeek: func(addr uint16) uint8 { return b.mem[addr] },
		OnHalt: func(nextAddr uint16) {
			b.halts++
			b.lastHalt = nextAddr
		},
	}
}

func (b *fakeBus) load(addr uint16, bytes ...uint8) {
	for i, v := range bytes {
		b.mem[int(addr)+i] = v
	}
}

func newTestCPU(b *fakeBus) *CPU {
	c := New(b.callbacks())
	c.PowerOn()
	return c
}

func TestPowerOnReadsResetVector(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	c := newTestCPU(b)
	require.Equal(t, uint16(0x8000), c.PC)
	require.Equal(t, uint8(0), c.A)
	require.Equal(t, uint8(0xFD), c.SP)
	require.True(t, c.P&uint8(FlagInterrupt) != 0)
	require.EqualValues(t, 7, c.Cycles)
}

func TestResetPreservesRegistersAndDecrementsStackByThree(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	c := newTestCPU(b)
	c.A, c.X, c.Y = 0x11, 0x22, 0x33
	c.SP = 0xF0
	c.Cycles = 0

	c.Reset()

	require.Equal(t, uint8(0x11), c.A)
	require.Equal(t, uint8(0x22), c.X)
	require.Equal(t, uint8(0x33), c.Y)
	require.Equal(t, uint8(0xED), c.SP, "reset decrements SP by 3 without writing")
	require.Equal(t, uint16(0x8000), c.PC)
	require.EqualValues(t, 7, c.Cycles)
}

func TestLDAImmediateSetsFlags(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	b.load(0x8000, 0xA9, 0x00) // LDA #$00
	c := newTestCPU(b)

	require.NoError(t, c.Step())
	require.Equal(t, uint8(0), c.A)
	require.True(t, c.P&uint8(FlagZero) != 0)
	require.False(t, c.P&uint8(FlagNegative) != 0)
}

func TestLDAAbsoluteXPageCrossAddsDummyRead(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	b.load(0x8000, 0xBD, 0xFF, 0x10) // LDA $10FF,X
	b.mem[0x1200] = 0x42
	c := newTestCPU(b)
	c.X = 0x01

	before := c.Cycles
	require.NoError(t, c.Step())
	require.Equal(t, uint8(0x42), c.A)
	require.EqualValues(t, 5, c.Cycles-before, "page-crossing absolute,X costs one extra cycle")
}

func TestLDAAbsoluteXNoPageCrossIsFourCycles(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	b.load(0x8000, 0xBD, 0x00, 0x10) // LDA $1000,X
	b.mem[0x1001] = 0x42
	c := newTestCPU(b)
	c.X = 0x01

	before := c.Cycles
	require.NoError(t, c.Step())
	require.EqualValues(t, 4, c.Cycles-before)
}

func TestBranchTakenCrossingPageAddsTwoDummyCycles(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	b.load(0x80FD, 0xF0, 0x05) // BEQ +5, lands across a page boundary
	c := newTestCPU(b)
	c.PC = 0x80FD
	c.P |= uint8(FlagZero)

	before := c.Cycles
	require.NoError(t, c.Step())
	require.EqualValues(t, 4, c.Cycles-before)
	require.Equal(t, uint16(0x8104), c.PC)
}

func TestADCSetsCarryAndOverflow(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	c := newTestCPU(b)
	c.A = 0x7F
	c.opADC(0x01)
	require.Equal(t, uint8(0x80), c.A)
	require.True(t, c.P&uint8(FlagOverflow) != 0, "0x7F+0x01 overflows into negative")
	require.False(t, c.P&uint8(FlagCarry) != 0)
}

func TestSBCBorrowClearsCarry(t *testing.T) {
	b := newFakeBus()
	c := newTestCPU(b)
	c.A = 0x00
	c.P |= uint8(FlagCarry) // no borrow going in
	c.opADC(0x01 ^ 0xFF)
	require.Equal(t, uint8(0xFF), c.A)
	require.False(t, c.P&uint8(FlagCarry) != 0, "0 - 1 borrows")
}

func TestStackPushPopRoundTrips(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	c := newTestCPU(b)
	sp := c.SP
	c.push(0xAB)
	require.Equal(t, sp-1, c.SP)
	require.Equal(t, uint8(0xAB), c.pop())
	require.Equal(t, sp, c.SP)
}

func TestJSRThenRTSRoundTrips(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	b.load(0x8000, 0x20, 0x00, 0x90) // JSR $9000
	b.load(0x9000, 0x60)            // RTS
	c := newTestCPU(b)

	require.NoError(t, c.Step())
	require.Equal(t, uint16(0x9000), c.PC)
	require.NoError(t, c.Step())
	require.Equal(t, uint16(0x8003), c.PC)
}

func TestBRKPushesStatusWithBreakFlagAndJumpsToIRQVector(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	b.load(0xFFFE, 0x34, 0x12)
	b.load(0x8000, 0x00) // BRK
	c := newTestCPU(b)

	require.NoError(t, c.Step())
	require.Equal(t, uint16(0x1234), c.PC)
	require.True(t, c.P&uint8(FlagInterrupt) != 0)

	pushedP := b.mem[0x0100+int(c.SP)+1]
	require.True(t, pushedP&uint8(FlagBreak) != 0, "BRK sets the break bit in the stacked copy of P")
}

func TestNMIIsEdgeTriggeredAndFiresOnlyOnce(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	b.load(0xFFFA, 0x00, 0x90)
	b.load(0x8000, 0xEA, 0xEA, 0xEA) // NOP NOP NOP
	c := newTestCPU(b)

	c.SetNMILine(true)
	require.NoError(t, c.Step()) // executes NOP, then services the NMI
	require.Equal(t, uint16(0x9000), c.PC)

	c.PC = 0x8001
	require.NoError(t, c.Step()) // NMI line still asserted but already serviced; no second NMI
	require.Equal(t, uint16(0x8002), c.PC)
}

func TestIRQIgnoredWhenInterruptFlagSet(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	b.load(0x8000, 0xEA) // NOP
	c := newTestCPU(b)
	c.P |= uint8(FlagInterrupt)
	c.SetIRQLine(true)

	require.NoError(t, c.Step())
	require.Equal(t, uint16(0x8001), c.PC, "IRQ line ignored while I flag is set")
}

func TestIllegalOpcodeIsFatal(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	b.load(0x8000, 0x02) // unimplemented
	c := newTestCPU(b)

	err := c.Step()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrIllegalOpcode))
}

func TestScheduledHaltFiresOnNextBusAccess(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	b.load(0x8000, 0xEA, 0xEA) // NOP NOP
	c := newTestCPU(b)

	c.ScheduleHalt()
	require.NoError(t, c.Step())
	require.Equal(t, 1, b.halts)
}

func TestAccessTypeDistinguishesDummyFromRealReads(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	b.load(0x8000, 0xBD, 0xFF, 0x10) // LDA $10FF,X, crosses a page with X=1
	b.mem[0x1200] = 0x42
	c := newTestCPU(b)
	c.X = 0x01

	b.accessLog = nil
	require.NoError(t, c.Step())

	require.Equal(t, []AccessType{
		AccessExecute,   // opcode fetch
		AccessRead,      // operand low byte
		AccessRead,      // operand high byte
		AccessDummyRead, // page-cross dummy read at the un-carried address
		AccessRead,      // the real, correctly-carried read
	}, b.accessLog)
}

func TestAccessTypeTagsReadModifyWriteDummyWrite(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	b.load(0x8000, 0xE6, 0x10) // INC $10
	b.mem[0x0010] = 0x01
	c := newTestCPU(b)

	b.accessLog = nil
	require.NoError(t, c.Step())

	require.Equal(t, []AccessType{
		AccessExecute,    // opcode fetch
		AccessRead,       // operand byte
		AccessRead,       // read the value to increment
		AccessDummyWrite, // dummy write-back of the original value
		AccessWrite,      // the real write of the incremented value
	}, b.accessLog)
	require.Equal(t, uint8(0x02), b.mem[0x0010])
}

func TestIndirectJMPPageWrapBug(t *testing.T) {
	b := newFakeBus()
	b.load(0xFFFC, 0x00, 0x80)
	b.load(0x8000, 0x6C, 0xFF, 0x10) // JMP ($10FF)
	b.mem[0x10FF] = 0x34
	b.mem[0x1000] = 0x12 // high byte wrongly read from $1000, not $1100
	c := newTestCPU(b)

	require.NoError(t, c.Step())
	require.Equal(t, uint16(0x1234), c.PC)
}
