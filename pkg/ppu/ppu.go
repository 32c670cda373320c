// Package ppu implements the picture-generating coprocessor: the
// scanline/cycle state machine that drives background and sprite fetch
// pipelines, rendering one pixel per dot into a 256x240 frame buffer and
// producing the vertical-blank interrupt line the CPU samples every cycle.
package ppu

import (
	"github.com/nesgo/nesgo/pkg/logger"
)

// PPU represents the Picture Processing Unit
type PPU struct {
	// Registers
	PPUCTRL   uint8 // $2000
	PPUMASK   uint8 // $2001
	PPUSTATUS uint8 // $2002
	OAMADDR   uint8 // $2003
	OAMDATA   uint8 // $2004
	PPUSCROLL uint8 // $2005
	PPUADDR   uint8 // $2006
	PPUDATA   uint8 // $2007

	// Internal registers (the "loopy" v/t/x/w scrolling model)
	v uint16 // current VRAM address: nametable select, coarse X/Y, fine Y
	t uint16 // temporary VRAM address, latched by $2005/$2006 until the second write
	x uint8  // fine X scroll, 0-7
	w uint8  // write toggle shared by $2005/$2006

	// Scrolling
	ScrollY uint8 // Y scroll position

	// VRAM
	VRAM [0x4000]uint8

	// OAM (Object Attribute Memory)
	OAM [256]uint8

	// Frame buffer (256x240)
	FrameBuffer [256 * 240]uint32

	// Persistent frame buffer for games with intermittent rendering
	PersistentFrameBuffer [256 * 240]uint32

	// Track if any meaningful rendering occurred this frame
	renderingOccurred bool
	lastRenderFrame   uint64

	// Timing
	Cycle         int
	Scanline      int
	Frame         uint64
	FrameComplete bool

	// NMI
	NMIRequested bool

	// Background fetch pipeline: two 16-bit pattern shift registers plus
	// their attribute companions, fed by one-byte latches refilled on an
	// 8-dot cadence (nametable byte, attribute byte, pattern low, pattern
	// high) and shifted left once per dot. Fine X indexes into the high
	// bits of these registers to pick the pixel actually on screen.
	bgShiftPatternLo uint16
	bgShiftPatternHi uint16
	bgShiftAttrLo    uint8
	bgShiftAttrHi    uint8
	bgAttrLatchLo    uint8
	bgAttrLatchHi    uint8

	ntByte      uint8
	atByte      uint8
	bgPatternLo uint8
	bgPatternHi uint8

	// Sprite pipeline: secondary OAM holds up to 8 sprites evaluated for
	// the upcoming scanline; each gets its own 8-bit pattern shift pair
	// and an X counter that gates when that sprite starts contributing
	// pixels.
	secondaryOAM   [8][4]uint8
	secondaryCount int
	sprite0InLine  bool
	spriteShiftLo  [8]uint8
	spriteShiftHi  [8]uint8
	spriteAttr     [8]uint8
	spriteXCounter [8]uint8
	spriteIsZero   [8]bool

	// Rendering
	PaletteManager *PaletteManager

	// PPU read buffer for $2007 reads
	readBuffer uint8

	// Cartridge interface
	Cartridge interface {
		ReadCHR(addr uint16) uint8
		WriteCHR(addr uint16, value uint8)
		Step() // Called once per scanline for mapper IRQ
		IsIRQPending() bool
		ClearIRQ()
		GetMirroring() int
		NotifyA12(chrAddr uint16, renderingEnabled bool) // For MMC3 A12 edge detection
	}
}

// PPUCTRL flags
const (
	PPUCTRLNameTable   = 0x03 // Base nametable address
	PPUCTRLIncrement   = 0x04 // VRAM address increment
	PPUCTRLSpriteTable = 0x08 // Sprite pattern table address
	PPUCTRLBGTable     = 0x10 // Background pattern table address
	PPUCTRLSpriteSize  = 0x20 // Sprite size
	PPUCTRLMasterSlave = 0x40 // PPU master/slave select
	PPUCTRLNMIEnable   = 0x80 // Generate NMI at VBlank
)

// PPUMASK flags
const (
	PPUMASKGreyscale      = 0x01 // Greyscale
	PPUMASKBGLeft         = 0x02 // Show background in leftmost 8 pixels
	PPUMASKSpriteLeft     = 0x04 // Show sprites in leftmost 8 pixels
	PPUMASKBGShow         = 0x08 // Show background
	PPUMASKSpriteShow     = 0x10 // Show sprites
	PPUMASKRedEmphasize   = 0x20 // Emphasize red
	PPUMASKGreenEmphasize = 0x40 // Emphasize green
	PPUMASKBlueEmphasize  = 0x80 // Emphasize blue
)

// PPUSTATUS flags
const (
	PPUSTATUSOverflow   = 0x20 // Sprite overflow
	PPUSTATUSSprite0Hit = 0x40 // Sprite 0 hit
	PPUSTATUSVBlank     = 0x80 // VBlank flag
)

// New creates a new PPU instance
func New() *PPU {
	return &PPU{
		Cycle:          0,
		Scanline:       0,
		PaletteManager: NewPaletteManager(),
	}
}

// Reset resets the PPU to initial state
func (p *PPU) Reset() {
	p.PPUCTRL = 0
	p.PPUMASK = 0
	p.PPUSTATUS = 0
	p.OAMADDR = 0
	p.v = 0
	p.t = 0
	p.x = 0
	p.w = 0
	p.Cycle = 0
	p.Scanline = 0
	p.FrameComplete = false
	p.secondaryCount = 0

	// Persistent buffer deliberately survives Reset so intermittently
	// rendering games don't flash to black on a soft reset.
	p.renderingOccurred = false
}

// SetCartridge sets the cartridge reference
func (p *PPU) SetCartridge(cart interface {
	ReadCHR(addr uint16) uint8
	WriteCHR(addr uint16, value uint8)
	Step()
	IsIRQPending() bool
	ClearIRQ()
	GetMirroring() int
	NotifyA12(chrAddr uint16, renderingEnabled bool)
}) {
	p.Cartridge = cart
}

func (p *PPU) renderingEnabled() bool {
	return p.PPUMASK&(PPUMASKBGShow|PPUMASKSpriteShow) != 0
}

// Tick advances the PPU by exactly one dot.
func (p *PPU) Tick() {
	p.PaletteManager.SetEmphasis(p.PPUMASK & 0xE0)

	renderLine := p.Scanline == -1 || p.Scanline < 240
	enabled := p.renderingEnabled()

	if enabled && renderLine {
		p.backgroundFetchCycle()
	}

	if p.Scanline >= 0 && p.Scanline < 240 && p.Cycle >= 1 && p.Cycle <= 256 {
		if enabled {
			p.tickSpriteCounters()
		}
		p.renderPixel()
	}

	if enabled && renderLine {
		switch p.Cycle {
		case 256:
			p.evaluateSprites()
		case 257:
			p.fetchSpritePatterns()
		}
	}

	if p.Scanline == -1 && enabled && p.Cycle >= 280 && p.Cycle <= 304 {
		p.copyVerticalBits()
	}

	p.Cycle++
	if p.Scanline == -1 && p.Cycle == 340 && enabled && p.Frame%2 == 1 {
		// Pre-render scanline's last dot is skipped on every odd frame
		// when rendering is enabled.
		p.Cycle = 341
	}
	if p.Cycle >= 341 {
		p.Cycle = 0
		p.Scanline++

		// MMC3-style mappers count scanlines via this hook, independent
		// of whether rendering is actually enabled.
		if p.Cartridge != nil && p.Scanline >= 0 && p.Scanline < 240 {
			p.Cartridge.Step()
		}

		if p.Scanline == 241 {
			p.PPUSTATUS |= PPUSTATUSVBlank
			p.PPUSTATUS &^= PPUSTATUSSprite0Hit
			p.PPUSTATUS &^= PPUSTATUSOverflow
			if p.PPUCTRL&PPUCTRLNMIEnable != 0 {
				p.NMIRequested = true
			}
		}

		if p.Scanline >= 261 {
			p.Scanline = -1
			p.FrameComplete = true
			p.handleFrameCompletion()
			p.Frame++
			p.PPUSTATUS &^= PPUSTATUSVBlank
		}
	}
}

// backgroundFetchCycle drives the 8-dot nametable/attribute/pattern fetch
// cadence across the dots that feed the shift-register pipeline, and the
// coarse-X/fine-Y scroll increments that go with it.
func (p *PPU) backgroundFetchCycle() {
	cycle := p.Cycle
	if (cycle >= 1 && cycle <= 256) || (cycle >= 321 && cycle <= 336) {
		p.shiftBackgroundRegisters()
		switch (cycle - 1) % 8 {
		case 0:
			p.loadBackgroundShiftRegisters()
			p.ntByte = p.readVRAM(0x2000 | (p.v & 0x0FFF))
		case 2:
			p.atByte = p.readVRAM(p.attributeAddr())
		case 4:
			p.bgPatternLo = p.readVRAM(p.bgPatternAddr())
		case 6:
			p.bgPatternHi = p.readVRAM(p.bgPatternAddr() + 8)
		case 7:
			p.incrementCoarseX()
		}
	}
	if cycle == 256 {
		p.incrementFineY()
	}
	if cycle == 257 {
		p.loadBackgroundShiftRegisters()
		p.copyHorizontalBits()
	}
}

func (p *PPU) attributeAddr() uint16 {
	return 0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
}

func (p *PPU) bgPatternAddr() uint16 {
	base := uint16(0)
	if p.PPUCTRL&PPUCTRLBGTable != 0 {
		base = 0x1000
	}
	fineY := (p.v >> 12) & 0x07
	return base + uint16(p.ntByte)*16 + fineY
}

// incrementCoarseX wraps coarse X at 32 tiles, flipping the horizontal
// nametable bit on overflow.
func (p *PPU) incrementCoarseX() {
	if p.v&0x001F == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

// incrementFineY wraps fine Y into coarse Y at 8, and coarse Y into the
// vertical nametable bit at the 30-row boundary (240 pixels, not the
// power-of-two 32 coarse-Y can technically address).
func (p *PPU) incrementFineY() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	coarseY := (p.v & 0x03E0) >> 5
	switch coarseY {
	case 29:
		coarseY = 0
		p.v ^= 0x0800
	case 31:
		coarseY = 0
	default:
		coarseY++
	}
	p.v = (p.v &^ 0x03E0) | (coarseY << 5)
}

func (p *PPU) copyHorizontalBits() {
	p.v = (p.v & 0xFBE0) | (p.t & 0x041F)
}

func (p *PPU) copyVerticalBits() {
	p.v = (p.v & 0x841F) | (p.t & 0x7BE0)
}

// loadBackgroundShiftRegisters pushes the most recently fetched tile into
// the low byte of each 16-bit shift register and latches its 2-bit
// attribute-quadrant palette selection.
func (p *PPU) loadBackgroundShiftRegisters() {
	p.bgShiftPatternLo = (p.bgShiftPatternLo & 0xFF00) | uint16(p.bgPatternLo)
	p.bgShiftPatternHi = (p.bgShiftPatternHi & 0xFF00) | uint16(p.bgPatternHi)

	quadrantShift := ((p.v >> 4) & 0x04) | (p.v & 0x02)
	paletteBits := (p.atByte >> quadrantShift) & 0x03
	p.bgAttrLatchLo = paletteBits & 0x01
	p.bgAttrLatchHi = (paletteBits >> 1) & 0x01
}

func (p *PPU) shiftBackgroundRegisters() {
	p.bgShiftPatternLo <<= 1
	p.bgShiftPatternHi <<= 1
	p.bgShiftAttrLo = (p.bgShiftAttrLo << 1) | p.bgAttrLatchLo
	p.bgShiftAttrHi = (p.bgShiftAttrHi << 1) | p.bgAttrLatchHi
}

// ReadRegister reads from PPU register
func (p *PPU) ReadRegister(addr uint16) uint8 {
	switch addr {
	case 0x2002: // PPUSTATUS
		value := p.PPUSTATUS
		p.PPUSTATUS &^= PPUSTATUSVBlank
		p.w = 0
		return value
	case 0x2004: // OAMDATA
		return p.OAM[p.OAMADDR]
	case 0x2007: // PPUDATA
		var value uint8
		if p.v >= 0x3F00 {
			value = p.readVRAM(p.v)
			p.readBuffer = p.readVRAM(p.v - 0x1000)
		} else {
			value = p.readBuffer
			p.readBuffer = p.readVRAM(p.v)
		}
		if p.PPUCTRL&PPUCTRLIncrement != 0 {
			p.v += 32
		} else {
			p.v++
		}
		return value
	}
	return 0
}

// WriteRegister writes to PPU register
func (p *PPU) WriteRegister(addr uint16, value uint8) {
	switch addr {
	case 0x2000: // PPUCTRL
		p.PPUCTRL = value
		p.t = (p.t & 0xF3FF) | ((uint16(value) & 0x03) << 10)
	case 0x2001: // PPUMASK
		p.PPUMASK = value
	case 0x2003: // OAMADDR
		p.OAMADDR = value
	case 0x2004: // OAMDATA
		p.OAM[p.OAMADDR] = value
		p.OAMADDR++
	case 0x2005: // PPUSCROLL
		if p.w == 0 {
			p.t = (p.t & 0xFFE0) | (uint16(value) >> 3)
			p.x = value & 0x07
			p.w = 1
		} else {
			p.t = (p.t & 0x8FFF) | ((uint16(value) & 0x07) << 12)
			p.t = (p.t & 0xFC1F) | ((uint16(value) & 0xF8) << 2)
			p.w = 0
		}
	case 0x2006: // PPUADDR
		if p.w == 0 {
			p.t = (p.t & 0x80FF) | ((uint16(value) & 0x3F) << 8)
			p.w = 1
		} else {
			p.t = (p.t & 0xFF00) | uint16(value)
			p.v = p.t
			p.w = 0
		}
	case 0x2007: // PPUDATA
		p.writeVRAM(p.v, value)
		if p.PPUCTRL&PPUCTRLIncrement != 0 {
			p.v += 32
		} else {
			p.v++
		}
	}
}

// readVRAM reads from VRAM
func (p *PPU) readVRAM(addr uint16) uint8 {
	addr = addr % 0x4000

	switch {
	case addr < 0x2000:
		if p.Cartridge == nil {
			return 0
		}
		if p.renderingEnabled() {
			p.Cartridge.NotifyA12(addr, true)
		}
		return p.Cartridge.ReadCHR(addr)
	case addr < 0x3F00:
		return p.readNameTable(addr)
	case addr < 0x4000:
		return p.PaletteManager.ReadPalette(uint8(addr & 0x1F))
	}
	return 0
}

// writeVRAM writes to VRAM
func (p *PPU) writeVRAM(addr uint16, value uint8) {
	addr = addr % 0x4000

	switch {
	case addr < 0x2000:
		if p.Cartridge == nil {
			return
		}
		if p.renderingEnabled() {
			p.Cartridge.NotifyA12(addr, true)
		}
		p.Cartridge.WriteCHR(addr, value)
	case addr < 0x3F00:
		p.writeNameTable(addr, value)
	case addr < 0x4000:
		p.PaletteManager.WritePalette(uint8(addr&0x1F), value)
	}
}

// GetFramebuffer returns the current framebuffer as RGBA bytes
func (p *PPU) GetFramebuffer() []uint8 {
	rgba := make([]uint8, 256*240*4)
	for i, pixel := range p.FrameBuffer {
		rgba[i*4+0] = uint8(pixel >> 16)
		rgba[i*4+1] = uint8(pixel >> 8)
		rgba[i*4+2] = uint8(pixel)
		rgba[i*4+3] = uint8(pixel >> 24)
	}
	return rgba
}

// readNameTable reads from nametable with mirroring
func (p *PPU) readNameTable(addr uint16) uint8 {
	return p.VRAM[p.mirrorNameTableAddress(addr)]
}

// writeNameTable writes to nametable with mirroring
func (p *PPU) writeNameTable(addr uint16, value uint8) {
	p.VRAM[p.mirrorNameTableAddress(addr)] = value
}

// mirrorNameTableAddress applies nametable mirroring
func (p *PPU) mirrorNameTableAddress(addr uint16) uint16 {
	offset := addr - 0x2000

	mode := 0 // default to horizontal with no cartridge attached
	if p.Cartridge != nil {
		mode = p.Cartridge.GetMirroring()
	}

	switch mode {
	case 0: // Horizontal: $2000=$2400, $2800=$2C00
		return (offset&0x3FF | (offset&0x800)>>1) + 0x2000
	case 1: // Vertical: $2000=$2800, $2400=$2C00
		return (offset & 0x7FF) + 0x2000
	default:
		return addr
	}
}

// NMIActive reports the logical AND of the vblank flag and PPUCTRL's
// NMI-enable bit. The bus samples this every CPU cycle and feeds it to the
// CPU's edge-triggered NMI line; the PPU never calls into the CPU directly.
func (p *PPU) NMIActive() bool {
	return p.PPUSTATUS&PPUSTATUSVBlank != 0 && p.PPUCTRL&PPUCTRLNMIEnable != 0
}

// IsMapperIRQPending returns whether mapper IRQ is pending
func (p *PPU) IsMapperIRQPending() bool {
	if p.Cartridge != nil {
		return p.Cartridge.IsIRQPending()
	}
	return false
}

// ClearMapperIRQ clears mapper IRQ
func (p *PPU) ClearMapperIRQ() {
	if p.Cartridge != nil {
		p.Cartridge.ClearIRQ()
	}
}

// handleFrameCompletion manages persistent frame buffer and rendering state
func (p *PPU) handleFrameCompletion() {
	hadRendering := p.renderingOccurred
	p.renderingOccurred = false
	if hadRendering {
		p.lastRenderFrame = p.Frame
		logger.LogPPU("frame %d: rendering occurred", p.Frame)
	}
}

// GetDisplayFrameBuffer returns the frame buffer that should be displayed,
// falling back to the last frame with actual content for games that only
// render intermittently (menu flicker, screen-off effects).
func (p *PPU) GetDisplayFrameBuffer() []uint32 {
	framesSinceRender := p.Frame - p.lastRenderFrame
	if framesSinceRender <= 1 || p.renderingOccurred {
		return p.FrameBuffer[:]
	}
	if framesSinceRender < 3600 {
		return p.PersistentFrameBuffer[:]
	}
	return p.FrameBuffer[:]
}
