package cpu

// opADC implements the addition half of ADC/SBC. SBC feeds it the operand
// bitwise-complemented, the standard trick for sharing carry/overflow
// logic between the two. This core never honors the decimal flag: ADC and
// SBC are always binary, matching the console's actual 6502 variant.
func (c *CPU) opADC(val uint8) {
	sum := uint16(c.A) + uint16(val) + uint16(c.P&uint8(FlagCarry))

	c.P &^= uint8(FlagOverflow | FlagCarry)
	if sum > 0xFF {
		c.P |= uint8(FlagCarry)
	}
	if (uint8(c.A^uint8(sum)) & uint8(val^uint8(sum)) & 0x80) != 0 {
		c.P |= uint8(FlagOverflow)
	}
	c.updateNZ(uint8(sum))
	c.A = uint8(sum)
}

func (c *CPU) opCMP(a, b uint8) {
	c.P &^= uint8(FlagNegative | FlagZero | FlagCarry)
	diff := a - b
	if a >= b {
		c.P |= uint8(FlagCarry)
	}
	if a == b {
		c.P |= uint8(FlagZero)
	}
	c.P |= diff & uint8(FlagNegative)
}

func (c *CPU) opASL(val uint8) uint8 {
	c.P &^= uint8(FlagCarry)
	c.P |= val >> 7
	val <<= 1
	c.updateNZ(val)
	return val
}

func (c *CPU) opLSR(val uint8) uint8 {
	c.P &^= uint8(FlagCarry)
	c.P |= val & 0x01
	val >>= 1
	c.updateNZ(val)
	return val
}

func (c *CPU) opROL(val uint8) uint8 {
	carry := c.P & 0x01
	c.P &^= uint8(FlagCarry)
	c.P |= val >> 7
	val = (val << 1) | carry
	c.updateNZ(val)
	return val
}

func (c *CPU) opROR(val uint8) uint8 {
	carry := c.P & 0x01
	c.P &^= uint8(FlagCarry)
	c.P |= val & 0x01
	val = (val >> 1) | (carry << 7)
	c.updateNZ(val)
	return val
}

func opADCi(c *CPU, mode addrMode) { c.opADC(c.readByMode(mode)) }
func opSBCi(c *CPU, mode addrMode) { c.opADC(c.readByMode(mode) ^ 0xFF) }

func opANDi(c *CPU, mode addrMode) {
	c.A &= c.readByMode(mode)
	c.updateNZ(c.A)
}

func opORAi(c *CPU, mode addrMode) {
	c.A |= c.readByMode(mode)
	c.updateNZ(c.A)
}

func opEORi(c *CPU, mode addrMode) {
	c.A ^= c.readByMode(mode)
	c.updateNZ(c.A)
}

func opASLi(c *CPU, mode addrMode) {
	val, addr := c.rmwReadByMode(mode)
	c.write(addr, c.opASL(val))
}

func opASLAi(c *CPU, _ addrMode) {
	c.dummyRead(c.PC)
	c.A = c.opASL(c.A)
}

func opLSRi(c *CPU, mode addrMode) {
	val, addr := c.rmwReadByMode(mode)
	c.write(addr, c.opLSR(val))
}

func opLSRAi(c *CPU, _ addrMode) {
	c.dummyRead(c.PC)
	c.A = c.opLSR(c.A)
}

func opROLi(c *CPU, mode addrMode) {
	val, addr := c.rmwReadByMode(mode)
	c.write(addr, c.opROL(val))
}

func opROLAi(c *CPU, _ addrMode) {
	c.dummyRead(c.PC)
	c.A = c.opROL(c.A)
}

func opRORi(c *CPU, mode addrMode) {
	val, addr := c.rmwReadByMode(mode)
	c.write(addr, c.opROR(val))
}

func opRORAi(c *CPU, _ addrMode) {
	c.dummyRead(c.PC)
	c.A = c.opROR(c.A)
}

func opBCC(c *CPU, mode addrMode) { c.branch(c.P&uint8(FlagCarry) == 0) }
func opBCS(c *CPU, mode addrMode) { c.branch(c.P&uint8(FlagCarry) != 0) }
func opBEQ(c *CPU, mode addrMode) { c.branch(c.P&uint8(FlagZero) != 0) }
func opBNE(c *CPU, mode addrMode) { c.branch(c.P&uint8(FlagZero) == 0) }
func opBMI(c *CPU, mode addrMode) { c.branch(c.P&uint8(FlagNegative) != 0) }
func opBPL(c *CPU, mode addrMode) { c.branch(c.P&uint8(FlagNegative) == 0) }
func opBVC(c *CPU, mode addrMode) { c.branch(c.P&uint8(FlagOverflow) == 0) }
func opBVS(c *CPU, mode addrMode) { c.branch(c.P&uint8(FlagOverflow) != 0) }

func opBIT(c *CPU, mode addrMode) {
	val := c.readByMode(mode)
	c.P &^= uint8(FlagZero | FlagOverflow | FlagNegative)
	if c.A&val == 0 {
		c.P |= uint8(FlagZero)
	}
	c.P |= val & (uint8(FlagOverflow) | uint8(FlagNegative))
}

func opBRK(c *CPU, _ addrMode) {
	c.handleInterrupt(interruptBRK)
}

func opCLC(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.P &^= uint8(FlagCarry) }
func opCLD(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.P &^= uint8(FlagDecimal) }
func opCLI(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.P &^= uint8(FlagInterrupt) }
func opCLV(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.P &^= uint8(FlagOverflow) }
func opSEC(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.P |= uint8(FlagCarry) }
func opSED(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.P |= uint8(FlagDecimal) }
func opSEI(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.P |= uint8(FlagInterrupt) }

func opCMPi(c *CPU, mode addrMode) { c.opCMP(c.A, c.readByMode(mode)) }
func opCPXi(c *CPU, mode addrMode) { c.opCMP(c.X, c.readByMode(mode)) }
func opCPYi(c *CPU, mode addrMode) { c.opCMP(c.Y, c.readByMode(mode)) }

func opDEC(c *CPU, mode addrMode) {
	val, addr := c.rmwReadByMode(mode)
	val--
	c.updateNZ(val)
	c.write(addr, val)
}

func opINC(c *CPU, mode addrMode) {
	val, addr := c.rmwReadByMode(mode)
	val++
	c.updateNZ(val)
	c.write(addr, val)
}

func opDEX(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.X--; c.updateNZ(c.X) }
func opDEY(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.Y--; c.updateNZ(c.Y) }
func opINX(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.X++; c.updateNZ(c.X) }
func opINY(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.Y++; c.updateNZ(c.Y) }

func opJMP(c *CPU, mode addrMode) {
	c.PC = c.fetchAddr(mode, false)
}

func opJSR(c *CPU, _ addrMode) {
	lo := c.fetchByte()
	c.dummyRead(c.stackAddr())
	returnAddr := c.PC // high byte not yet fetched: PC points at it, i.e. return address minus one
	c.push(uint8(returnAddr >> 8))
	c.push(uint8(returnAddr))
	hi := c.fetchByte()
	c.PC = uint16(lo) | uint16(hi)<<8
}

func opLDA(c *CPU, mode addrMode) { c.A = c.readByMode(mode); c.updateNZ(c.A) }
func opLDX(c *CPU, mode addrMode) { c.X = c.readByMode(mode); c.updateNZ(c.X) }
func opLDY(c *CPU, mode addrMode) { c.Y = c.readByMode(mode); c.updateNZ(c.Y) }

func opNOP(c *CPU, _ addrMode) { c.dummyRead(c.PC) }

func opPHA(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.push(c.A) }
func opPHP(c *CPU, _ addrMode) {
	c.dummyRead(c.PC)
	c.push(c.P | uint8(FlagBreak) | uint8(FlagUnused))
}

func opPLA(c *CPU, _ addrMode) {
	c.dummyRead(c.PC)
	c.dummyRead(c.stackAddr())
	c.A = c.pop()
	c.updateNZ(c.A)
}

func opPLP(c *CPU, _ addrMode) {
	c.dummyRead(c.PC)
	c.dummyRead(c.stackAddr())
	c.popP()
}

func opRTI(c *CPU, _ addrMode) {
	c.dummyRead(c.PC)
	c.dummyRead(c.stackAddr())
	c.popP()
	c.popPC()
}

func opRTS(c *CPU, _ addrMode) {
	c.dummyRead(c.PC)
	c.dummyRead(c.stackAddr())
	c.popPC()
	c.dummyRead(c.PC)
	c.PC++
}

func opSTA(c *CPU, mode addrMode) { c.writeByMode(mode, c.A) }
func opSTX(c *CPU, mode addrMode) { c.writeByMode(mode, c.X) }
func opSTY(c *CPU, mode addrMode) { c.writeByMode(mode, c.Y) }

func opTAX(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.X = c.A; c.updateNZ(c.X) }
func opTAY(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.Y = c.A; c.updateNZ(c.Y) }
func opTSX(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.X = c.SP; c.updateNZ(c.X) }
func opTXA(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.A = c.X; c.updateNZ(c.A) }
func opTXS(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.SP = c.X }
func opTYA(c *CPU, _ addrMode) { c.dummyRead(c.PC); c.A = c.Y; c.updateNZ(c.A) }

type opcodeEntry struct {
	name string
	mode addrMode
	exec func(*CPU, addrMode)
}

// opcodeTable is the full 256-entry decode table. Entries with a nil exec
// are illegal/unimplemented opcodes: Step reports ErrIllegalOpcode for
// them rather than guessing at undocumented behavior.
var opcodeTable = buildOpcodeTable()

func buildOpcodeTable() [256]opcodeEntry {
	var t [256]opcodeEntry

	set := func(op uint8, name string, mode addrMode, fn func(*CPU, addrMode)) {
		t[op] = opcodeEntry{name: name, mode: mode, exec: fn}
	}

	set(0x00, "BRK", modeImplied, opBRK)
	set(0x01, "ORA", modeIndexedIndirect, opORAi)
	set(0x05, "ORA", modeZeroPage, opORAi)
	set(0x06, "ASL", modeZeroPage, opASLi)
	set(0x08, "PHP", modeImplied, opPHP)
	set(0x09, "ORA", modeImmediate, opORAi)
	set(0x0A, "ASL", modeAccumulator, opASLAi)
	set(0x0D, "ORA", modeAbsolute, opORAi)
	set(0x0E, "ASL", modeAbsolute, opASLi)

	set(0x10, "BPL", modeRelative, opBPL)
	set(0x11, "ORA", modeIndirectIndexed, opORAi)
	set(0x15, "ORA", modeZeroPageX, opORAi)
	set(0x16, "ASL", modeZeroPageX, opASLi)
	set(0x18, "CLC", modeImplied, opCLC)
	set(0x19, "ORA", modeAbsoluteY, opORAi)
	set(0x1D, "ORA", modeAbsoluteX, opORAi)
	set(0x1E, "ASL", modeAbsoluteX, opASLi)

	set(0x20, "JSR", modeAbsolute, opJSR)
	set(0x21, "AND", modeIndexedIndirect, opANDi)
	set(0x24, "BIT", modeZeroPage, opBIT)
	set(0x25, "AND", modeZeroPage, opANDi)
	set(0x26, "ROL", modeZeroPage, opROLi)
	set(0x28, "PLP", modeImplied, opPLP)
	set(0x29, "AND", modeImmediate, opANDi)
	set(0x2A, "ROL", modeAccumulator, opROLAi)
	set(0x2C, "BIT", modeAbsolute, opBIT)
	set(0x2D, "AND", modeAbsolute, opANDi)
	set(0x2E, "ROL", modeAbsolute, opROLi)

	set(0x30, "BMI", modeRelative, opBMI)
	set(0x31, "AND", modeIndirectIndexed, opANDi)
	set(0x35, "AND", modeZeroPageX, opANDi)
	set(0x36, "ROL", modeZeroPageX, opROLi)
	set(0x38, "SEC", modeImplied, opSEC)
	set(0x39, "AND", modeAbsoluteY, opANDi)
	set(0x3D, "AND", modeAbsoluteX, opANDi)
	set(0x3E, "ROL", modeAbsoluteX, opROLi)

	set(0x40, "RTI", modeImplied, opRTI)
	set(0x41, "EOR", modeIndexedIndirect, opEORi)
	set(0x45, "EOR", modeZeroPage, opEORi)
	set(0x46, "LSR", modeZeroPage, opLSRi)
	set(0x48, "PHA", modeImplied, opPHA)
	set(0x49, "EOR", modeImmediate, opEORi)
	set(0x4A, "LSR", modeAccumulator, opLSRAi)
	set(0x4C, "JMP", modeAbsolute, opJMP)
	set(0x4D, "EOR", modeAbsolute, opEORi)
	set(0x4E, "LSR", modeAbsolute, opLSRi)

	set(0x50, "BVC", modeRelative, opBVC)
	set(0x51, "EOR", modeIndirectIndexed, opEORi)
	set(0x55, "EOR", modeZeroPageX, opEORi)
	set(0x56, "LSR", modeZeroPageX, opLSRi)
	set(0x58, "CLI", modeImplied, opCLI)
	set(0x59, "EOR", modeAbsoluteY, opEORi)
	set(0x5D, "EOR", modeAbsoluteX, opEORi)
	set(0x5E, "LSR", modeAbsoluteX, opLSRi)

	set(0x60, "RTS", modeImplied, opRTS)
	set(0x61, "ADC", modeIndexedIndirect, opADCi)
	set(0x65, "ADC", modeZeroPage, opADCi)
	set(0x66, "ROR", modeZeroPage, opRORi)
	set(0x68, "PLA", modeImplied, opPLA)
	set(0x69, "ADC", modeImmediate, opADCi)
	set(0x6A, "ROR", modeAccumulator, opRORAi)
	set(0x6C, "JMP", modeIndirect, opJMP)
	set(0x6D, "ADC", modeAbsolute, opADCi)
	set(0x6E, "ROR", modeAbsolute, opRORi)

	set(0x70, "BVS", modeRelative, opBVS)
	set(0x71, "ADC", modeIndirectIndexed, opADCi)
	set(0x75, "ADC", modeZeroPageX, opADCi)
	set(0x76, "ROR", modeZeroPageX, opRORi)
	set(0x78, "SEI", modeImplied, opSEI)
	set(0x79, "ADC", modeAbsoluteY, opADCi)
	set(0x7D, "ADC", modeAbsoluteX, opADCi)
	set(0x7E, "ROR", modeAbsoluteX, opRORi)

	set(0x81, "STA", modeIndexedIndirect, opSTA)
	set(0x84, "STY", modeZeroPage, opSTY)
	set(0x85, "STA", modeZeroPage, opSTA)
	set(0x86, "STX", modeZeroPage, opSTX)
	set(0x88, "DEY", modeImplied, opDEY)
	set(0x8A, "TXA", modeImplied, opTXA)
	set(0x8C, "STY", modeAbsolute, opSTY)
	set(0x8D, "STA", modeAbsolute, opSTA)
	set(0x8E, "STX", modeAbsolute, opSTX)

	set(0x90, "BCC", modeRelative, opBCC)
	set(0x91, "STA", modeIndirectIndexed, opSTA)
	set(0x94, "STY", modeZeroPageX, opSTY)
	set(0x95, "STA", modeZeroPageX, opSTA)
	set(0x96, "STX", modeZeroPageY, opSTX)
	set(0x98, "TYA", modeImplied, opTYA)
	set(0x99, "STA", modeAbsoluteY, opSTA)
	set(0x9A, "TXS", modeImplied, opTXS)
	set(0x9D, "STA", modeAbsoluteX, opSTA)

	set(0xA0, "LDY", modeImmediate, opLDY)
	set(0xA1, "LDA", modeIndexedIndirect, opLDA)
	set(0xA2, "LDX", modeImmediate, opLDX)
	set(0xA4, "LDY", modeZeroPage, opLDY)
	set(0xA5, "LDA", modeZeroPage, opLDA)
	set(0xA6, "LDX", modeZeroPage, opLDX)
	set(0xA8, "TAY", modeImplied, opTAY)
	set(0xA9, "LDA", modeImmediate, opLDA)
	set(0xAA, "TAX", modeImplied, opTAX)
	set(0xAC, "LDY", modeAbsolute, opLDY)
	set(0xAD, "LDA", modeAbsolute, opLDA)
	set(0xAE, "LDX", modeAbsolute, opLDX)

	set(0xB0, "BCS", modeRelative, opBCS)
	set(0xB1, "LDA", modeIndirectIndexed, opLDA)
	set(0xB4, "LDY", modeZeroPageX, opLDY)
	set(0xB5, "LDA", modeZeroPageX, opLDA)
	set(0xB6, "LDX", modeZeroPageY, opLDX)
	set(0xB8, "CLV", modeImplied, opCLV)
	set(0xB9, "LDA", modeAbsoluteY, opLDA)
	set(0xBA, "TSX", modeImplied, opTSX)
	set(0xBC, "LDY", modeAbsoluteX, opLDY)
	set(0xBD, "LDA", modeAbsoluteX, opLDA)
	set(0xBE, "LDX", modeAbsoluteY, opLDX)

	set(0xC0, "CPY", modeImmediate, opCPYi)
	set(0xC1, "CMP", modeIndexedIndirect, opCMPi)
	set(0xC4, "CPY", modeZeroPage, opCPYi)
	set(0xC5, "CMP", modeZeroPage, opCMPi)
	set(0xC6, "DEC", modeZeroPage, opDEC)
	set(0xC8, "INY", modeImplied, opINY)
	set(0xC9, "CMP", modeImmediate, opCMPi)
	set(0xCA, "DEX", modeImplied, opDEX)
	set(0xCC, "CPY", modeAbsolute, opCPYi)
	set(0xCD, "CMP", modeAbsolute, opCMPi)
	set(0xCE, "DEC", modeAbsolute, opDEC)

	set(0xD0, "BNE", modeRelative, opBNE)
	set(0xD1, "CMP", modeIndirectIndexed, opCMPi)
	set(0xD5, "CMP", modeZeroPageX, opCMPi)
	set(0xD6, "DEC", modeZeroPageX, opDEC)
	set(0xD8, "CLD", modeImplied, opCLD)
	set(0xD9, "CMP", modeAbsoluteY, opCMPi)
	set(0xDD, "CMP", modeAbsoluteX, opCMPi)
	set(0xDE, "DEC", modeAbsoluteX, opDEC)

	set(0xE0, "CPX", modeImmediate, opCPXi)
	set(0xE1, "SBC", modeIndexedIndirect, opSBCi)
	set(0xE4, "CPX", modeZeroPage, opCPXi)
	set(0xE5, "SBC", modeZeroPage, opSBCi)
	set(0xE6, "INC", modeZeroPage, opINC)
	set(0xE8, "INX", modeImplied, opINX)
	set(0xE9, "SBC", modeImmediate, opSBCi)
	set(0xEA, "NOP", modeImplied, opNOP)
	set(0xEC, "CPX", modeAbsolute, opCPXi)
	set(0xED, "SBC", modeAbsolute, opSBCi)
	set(0xEE, "INC", modeAbsolute, opINC)

	set(0xF0, "BEQ", modeRelative, opBEQ)
	set(0xF1, "SBC", modeIndirectIndexed, opSBCi)
	set(0xF5, "SBC", modeZeroPageX, opSBCi)
	set(0xF6, "INC", modeZeroPageX, opINC)
	set(0xF8, "SED", modeImplied, opSED)
	set(0xF9, "SBC", modeAbsoluteY, opSBCi)
	set(0xFD, "SBC", modeAbsoluteX, opSBCi)
	set(0xFE, "INC", modeAbsoluteX, opINC)

	return t
}
