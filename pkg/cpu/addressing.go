package cpu

// addrMode identifies one of the 6502's addressing modes. Implied,
// accumulator, and relative modes never go through fetchAddr: each is
// handled directly by the opcodes that use it.
type addrMode int

const (
	modeImplied addrMode = iota
	modeAccumulator
	modeImmediate
	modeZeroPage
	modeZeroPageX
	modeZeroPageY
	modeRelative
	modeAbsolute
	modeAbsoluteX
	modeAbsoluteY
	modeIndirect
	modeIndexedIndirect
	modeIndirectIndexed
)

// fetchAddr resolves the effective address for every addressing mode
// except implied, accumulator, and relative, consuming operand bytes (and
// any documented dummy cycles) from the instruction stream as it goes.
// forWrite forces the unconditional dummy read that write and
// read-modify-write instructions perform even when indexing does not
// cross a page boundary.
func (c *CPU) fetchAddr(mode addrMode, forWrite bool) uint16 {
	switch mode {
	case modeImmediate:
		addr := c.PC
		c.PC++
		return addr
	case modeZeroPage:
		return uint16(c.fetchByte())
	case modeZeroPageX:
		addr := c.fetchByte()
		c.dummyRead(uint16(addr))
		return uint16(addr + c.X)
	case modeZeroPageY:
		addr := c.fetchByte()
		c.dummyRead(uint16(addr))
		return uint16(addr + c.Y)
	case modeAbsolute:
		return c.fetchWord()
	case modeAbsoluteX:
		return c.addrAddIndex(c.fetchWord(), c.X, forWrite)
	case modeAbsoluteY:
		return c.addrAddIndex(c.fetchWord(), c.Y, forWrite)
	case modeIndirect:
		return c.readWord(c.fetchWord())
	case modeIndexedIndirect:
		ptr := c.fetchByte()
		c.dummyRead(uint16(ptr))
		return c.readWord(uint16(ptr + c.X))
	case modeIndirectIndexed:
		base := c.readWord(uint16(c.fetchByte()))
		return c.addrAddIndex(base, c.Y, forWrite)
	default:
		return 0
	}
}

// addrAddIndex adds an index register to a base address, performing the
// documented dummy read of the not-yet-carried address whenever the add
// crosses a page boundary, or unconditionally when the caller is about to
// write (stores and read-modify-write instructions always pay for the
// dummy cycle, page cross or not).
func (c *CPU) addrAddIndex(base uint16, index uint8, forWrite bool) uint16 {
	addr := base + uint16(index)
	crossed := (addr & 0xFF00) != (base & 0xFF00)
	if forWrite || crossed {
		wrongAddr := addr - ((addr & 0xFF00) - (base & 0xFF00))
		c.dummyRead(wrongAddr)
	}
	return addr
}

// readByMode reads the operand for a mode that only ever loads a value.
func (c *CPU) readByMode(mode addrMode) uint8 {
	return c.read(c.fetchAddr(mode, false))
}

// rmwReadByMode resolves the address for a read-modify-write instruction,
// reads the current value, and performs the documented dummy write of that
// same value back before the opcode handler computes and stores the new
// one.
func (c *CPU) rmwReadByMode(mode addrMode) (uint8, uint16) {
	addr := c.fetchAddr(mode, true)
	val := c.read(addr)
	c.dummyWrite(addr, val)
	return val, addr
}

func (c *CPU) writeByMode(mode addrMode, val uint8) {
	c.write(c.fetchAddr(mode, true), val)
}

// branch consumes the relative-offset operand and, if the branch is taken,
// performs the one or two documented dummy reads: one for the branch
// itself, and a second if the branch also crosses a page boundary.
func (c *CPU) branch(take bool) {
	disp := int8(c.fetchByte())
	if !take {
		return
	}
	c.dummyRead(c.PC)
	target := uint16(int32(c.PC) + int32(disp))
	pchDiff := (target & 0xFF00) - (c.PC & 0xFF00)
	if pchDiff != 0 {
		c.dummyRead(target - pchDiff)
	}
	c.PC = target
}
