package mapper

import "github.com/nesgo/nesgo/pkg/logger"

// Mapper2 (UxROM): a write-only bank-select latch anywhere in $8000-$FFFF
// selects the 16 KiB PRG bank visible at $8000-$BFFF; $C000-$FFFF is hard
// fixed to the cartridge's last PRG bank. CHR is always RAM (occasionally
// CHR ROM in the wild, handled the same way as CHR RAM here since UxROM
// never banks it).
type Mapper2 struct {
	cartridge *CartridgeData

	prgBank      uint8
	prgBankCount uint8
}

// NewMapper2 creates a new Mapper2 instance
func NewMapper2(data *CartridgeData) *Mapper2 {
	return &Mapper2{
		cartridge:    data,
		prgBankCount: uint8(len(data.PRGROM) / 16384),
	}
}

// ReadPRG reads from PRG space
func (m *Mapper2) ReadPRG(addr uint16) uint8 {
	if addr >= 0x8000 {
		if addr < 0xC000 {
			bank := m.prgBank % m.prgBankCount
			return m.bankedPRG(bank, addr-0x8000)
		}
		return m.bankedPRG(m.prgBankCount-1, addr-0xC000)
	}
	return readPRGRAM(m.cartridge.PRGRAM, addr)
}

func (m *Mapper2) bankedPRG(bank uint8, offset uint16) uint8 {
	final := uint32(bank)*16384 + uint32(offset)
	if final < uint32(len(m.cartridge.PRGROM)) {
		return m.cartridge.PRGROM[final]
	}
	return 0
}

// WritePRG writes to PRG space (handles bank switching)
func (m *Mapper2) WritePRG(addr uint16, value uint8) {
	if addr >= 0x8000 {
		m.prgBank = value & 0x0F
		logger.LogMapper("UxROM PRG bank select: %d", m.prgBank)
		return
	}
	if addr >= 0x6000 {
		writePRGRAM(m.cartridge.PRGRAM, addr, value)
	}
}

// ReadCHR reads from CHR space (CHR RAM for UxROM, occasionally CHR ROM)
func (m *Mapper2) ReadCHR(addr uint16) uint8 {
	return readCHRBank(m.cartridge.CHRROM, m.cartridge.CHRRAM, 0, len(m.cartridge.CHRROM), addr)
}

// WriteCHR writes to CHR space
func (m *Mapper2) WriteCHR(addr uint16, value uint8) {
	writeCHRRAM(m.cartridge.CHRRAM, addr, value)
}

// Step does nothing for UxROM (no special timing requirements)
func (m *Mapper2) Step() {
}

// GetCurrentPRGBank returns the current PRG bank for debugging
func (m *Mapper2) GetCurrentPRGBank() uint8 {
	return m.prgBank
}

// IsIRQPending returns false for Mapper2 (no IRQ support)
func (m *Mapper2) IsIRQPending() bool {
	return false
}

// ClearIRQ does nothing for Mapper2 (no IRQ support)
func (m *Mapper2) ClearIRQ() {
}

func init() {
	Register(2, func(data *CartridgeData) Mapper { return NewMapper2(data) })
}
