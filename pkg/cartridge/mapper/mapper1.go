package mapper

import "github.com/nesgo/nesgo/pkg/logger"

// Mapper1 (MMC1): register writes arrive one bit at a time through a 5-bit
// serial shift register latched to whichever $8xxx-$Fxxx address the fifth
// write lands on. Four PRG modes and two CHR modes select how the PRG
// $8000/$C000 and CHR $0000/$1000 windows get banked once
// control/chrBank0/chrBank1/prgBank settle.
type Mapper1 struct {
	cartridge *CartridgeData

	shiftRegister uint8
	shiftCount    uint8

	control  uint8
	chrBank0 uint8
	chrBank1 uint8
	prgBank  uint8

	prgMode   uint8
	chrMode   uint8
	mirroring uint8
}

// NewMapper1 creates a new Mapper1 instance
func NewMapper1(data *CartridgeData) *Mapper1 {
	return &Mapper1{
		cartridge: data,
		control:   0x0C, // PRG mode 3, CHR mode 0
		prgMode:   3,
		chrMode:   0,
		mirroring: 0,
	}
}

// ReadPRG reads from PRG ROM/RAM
func (m *Mapper1) ReadPRG(addr uint16) uint8 {
	if addr < 0x8000 {
		if addr < 0x6000 || (m.prgBank&0x10) != 0 {
			return 0
		}
		return readPRGRAM(m.cartridge.PRGRAM, addr)
	}
	bank, bankSize, offset := m.prgBankAndOffset(addr - 0x8000)
	return m.bankedPRG(bank, bankSize, offset)
}

// prgBankAndOffset resolves a $8000-$FFFF offset to the physical PRG bank
// and in-bank offset the current prgMode maps it to.
func (m *Mapper1) prgBankAndOffset(addr uint16) (bank, bankSize int, offset uint16) {
	switch m.prgMode {
	case 0, 1: // 32KB mode, bit 0 of the bank register ignored
		return int(m.prgBank >> 1), 0x8000, addr
	case 2: // first 16KB fixed, switchable bank at $C000
		if addr < 0x4000 {
			return 0, 0x4000, addr
		}
		return int(m.prgBank & 0x0F), 0x4000, addr - 0x4000
	default: // 3: switchable bank at $8000, last 16KB fixed
		if addr < 0x4000 {
			return int(m.prgBank & 0x0F), 0x4000, addr
		}
		last := len(m.cartridge.PRGROM)/0x4000 - 1
		return last, 0x4000, addr - 0x4000
	}
}

func (m *Mapper1) bankedPRG(bank, bankSize int, offset uint16) uint8 {
	final := uint32(bank)*uint32(bankSize) + uint32(offset)
	if int(final) < len(m.cartridge.PRGROM) {
		return m.cartridge.PRGROM[final]
	}
	return 0
}

// WritePRG feeds the serial port, or writes PRG RAM when the address lands
// below $8000.
func (m *Mapper1) WritePRG(addr uint16, value uint8) {
	if addr < 0x8000 {
		if addr >= 0x6000 && (m.prgBank&0x10) == 0 {
			writePRGRAM(m.cartridge.PRGRAM, addr, value)
		}
		return
	}

	if value&0x80 != 0 {
		// Reset bit: clears the shift register and forces PRG mode 3.
		m.shiftRegister = 0
		m.shiftCount = 0
		m.control |= 0x0C
		m.prgMode = 3
		return
	}

	m.shiftRegister = (m.shiftRegister >> 1) | ((value & 1) << 4)
	m.shiftCount++
	if m.shiftCount == 5 {
		m.writeRegister(addr, m.shiftRegister)
		m.shiftRegister = 0
		m.shiftCount = 0
	}
}

// writeRegister dispatches a completed 5-bit serial write to whichever
// internal register its address range selects.
func (m *Mapper1) writeRegister(addr uint16, value uint8) {
	switch {
	case addr <= 0x9FFF:
		m.control = value
		m.mirroring = value & 3
		m.prgMode = (value >> 2) & 3
		m.chrMode = (value >> 4) & 1
	case addr <= 0xBFFF:
		m.chrBank0 = value
	case addr <= 0xDFFF:
		m.chrBank1 = value
	default:
		m.prgBank = value
	}
	logger.LogMapper("MMC1 register $%04X <= $%02X (mirroring=%d prgMode=%d chrMode=%d)",
		addr, value, m.mirroring, m.prgMode, m.chrMode)
}

// ReadCHR reads from CHR ROM/RAM
func (m *Mapper1) ReadCHR(addr uint16) uint8 {
	if len(m.cartridge.CHRROM) == 0 {
		return readCHRBank(nil, m.cartridge.CHRRAM, 0, 0, addr)
	}
	bank, bankSize, offset := m.chrBankAndOffset(addr)
	return readCHRBank(m.cartridge.CHRROM, nil, bank, bankSize, offset)
}

// chrBankAndOffset resolves a $0000-$1FFF PPU address to the physical CHR
// bank and in-bank offset the current chrMode maps it to.
func (m *Mapper1) chrBankAndOffset(addr uint16) (bank, bankSize int, offset uint16) {
	if m.chrMode == 0 {
		return int(m.chrBank0 >> 1), 0x2000, addr
	}
	if addr < 0x1000 {
		return int(m.chrBank0), 0x1000, addr
	}
	return int(m.chrBank1), 0x1000, addr - 0x1000
}

// WriteCHR writes to CHR RAM; CHR ROM cartridges ignore it.
func (m *Mapper1) WriteCHR(addr uint16, value uint8) {
	writeCHRRAM(m.cartridge.CHRRAM, addr, value)
}

// Step does nothing for Mapper1 (no IRQ counter)
func (m *Mapper1) Step() {
}

// IsIRQPending returns false for Mapper1 (no IRQ support)
func (m *Mapper1) IsIRQPending() bool {
	return false
}

// ClearIRQ does nothing for Mapper1 (no IRQ support)
func (m *Mapper1) ClearIRQ() {
}

// GetMirroring returns the current mirroring mode
func (m *Mapper1) GetMirroring() uint8 {
	return m.mirroring
}

func init() {
	Register(1, func(data *CartridgeData) Mapper { return NewMapper1(data) })
}
