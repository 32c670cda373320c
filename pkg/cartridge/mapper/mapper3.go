package mapper

import "github.com/nesgo/nesgo/pkg/logger"

// Mapper3 (CNROM): PRG is fixed (the same 16/32 KiB linear mapping as
// Mapper0); a write anywhere in $8000-$FFFF selects the 8 KiB CHR ROM bank.
// Some CNROM boards wire bus conflicts (the cartridge ANDs the written
// value with whatever the PRG bus is currently driving); submapper 2 models
// that, submapper 1 (the default here) assumes a conflict-free board.
type Mapper3 struct {
	cartridge *CartridgeData

	chrBank      uint8
	chrBankCount uint8

	busConflictMode uint8 // 0=unknown, 1=no conflicts, 2=AND-type conflicts
}

// NewMapper3 creates a new Mapper3 instance
func NewMapper3(data *CartridgeData) *Mapper3 {
	m := &Mapper3{
		cartridge:       data,
		busConflictMode: 1,
	}
	if len(data.CHRROM) > 0 {
		m.chrBankCount = uint8(len(data.CHRROM) / 8192)
	}
	return m
}

// ReadPRG reads from PRG space (32KB fixed mapping)
func (m *Mapper3) ReadPRG(addr uint16) uint8 {
	if addr >= 0x8000 {
		addr -= 0x8000
		if len(m.cartridge.PRGROM) == 16384 {
			addr %= 16384
		}
		if int(addr) < len(m.cartridge.PRGROM) {
			return m.cartridge.PRGROM[addr]
		}
		return 0
	}
	return readPRGRAM(m.cartridge.PRGRAM, addr)
}

// WritePRG writes to PRG space (handles CHR bank switching with bus conflicts)
func (m *Mapper3) WritePRG(addr uint16, value uint8) {
	if addr >= 0x8000 {
		effectiveValue := value
		if m.busConflictMode == 2 {
			effectiveValue = value & m.ReadPRG(addr)
		}
		m.chrBank = effectiveValue & 0x03
		logger.LogMapper("CNROM CHR bank select: %d", m.chrBank)
		return
	}
	if addr >= 0x6000 {
		writePRGRAM(m.cartridge.PRGRAM, addr, value)
	}
}

// ReadCHR reads from CHR space with bank switching
func (m *Mapper3) ReadCHR(addr uint16) uint8 {
	bank := uint8(0)
	if m.chrBankCount > 0 {
		bank = m.chrBank % m.chrBankCount
	}
	return readCHRBank(m.cartridge.CHRROM, m.cartridge.CHRRAM, int(bank), 8192, addr)
}

// WriteCHR writes to CHR space
func (m *Mapper3) WriteCHR(addr uint16, value uint8) {
	// CNROM's CHR ROM is read-only; only a CHR-RAM variant is writable.
	writeCHRRAM(m.cartridge.CHRRAM, addr, value)
}

// Step does nothing for CNROM (no special timing requirements)
func (m *Mapper3) Step() {
}

// GetCurrentCHRBank returns the current CHR bank for debugging
func (m *Mapper3) GetCurrentCHRBank() uint8 {
	return m.chrBank
}

// IsIRQPending returns false for Mapper3 (no IRQ support)
func (m *Mapper3) IsIRQPending() bool {
	return false
}

// ClearIRQ does nothing for Mapper3 (no IRQ support)
func (m *Mapper3) ClearIRQ() {
}

// SetBusConflictMode sets the bus conflict behavior based on submapper
// 0 = unknown behavior, 1 = no conflicts, 2 = AND-type conflicts
func (m *Mapper3) SetBusConflictMode(mode uint8) {
	if mode <= 2 {
		m.busConflictMode = mode
	}
}

func init() {
	Register(3, func(data *CartridgeData) Mapper { return NewMapper3(data) })
}
