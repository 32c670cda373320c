package ppu

import "github.com/nesgo/nesgo/pkg/logger"

// masterPalette is the fixed 64-entry NES hardware RGB table. It never
// varies between consoles or games, so it stays a plain data table rather
// than something computed.
var masterPalette = [64][3]uint8{
	// 0x00-0x0F
	{0x80, 0x80, 0x80}, {0x00, 0x3D, 0xA6}, {0x00, 0x12, 0xB0}, {0x44, 0x00, 0x96},
	{0xA1, 0x00, 0x5E}, {0xC7, 0x00, 0x28}, {0xBA, 0x06, 0x00}, {0x8C, 0x17, 0x00},
	{0x5C, 0x2F, 0x00}, {0x10, 0x45, 0x00}, {0x05, 0x4A, 0x00}, {0x00, 0x47, 0x2E},
	{0x00, 0x41, 0x66}, {0x00, 0x00, 0x00}, {0x05, 0x05, 0x05}, {0x05, 0x05, 0x05},

	// 0x10-0x1F
	{0xC7, 0xC7, 0xC7}, {0x00, 0x77, 0xFF}, {0x21, 0x55, 0xFF}, {0x82, 0x37, 0xFA},
	{0xEB, 0x2F, 0xB5}, {0xFF, 0x29, 0x50}, {0xFF, 0x22, 0x00}, {0xD6, 0x32, 0x00},
	{0xC4, 0x62, 0x00}, {0x35, 0x80, 0x00}, {0x05, 0x8F, 0x00}, {0x00, 0x8A, 0x55},
	{0x00, 0x99, 0xCC}, {0x21, 0x21, 0x21}, {0x09, 0x09, 0x09}, {0x09, 0x09, 0x09},

	// 0x20-0x2F
	{0xFF, 0xFF, 0xFF}, {0x0F, 0xD7, 0xFF}, {0x69, 0xA2, 0xFF}, {0xD4, 0x80, 0xFF},
	{0xFF, 0x45, 0xF3}, {0xFF, 0x61, 0x8B}, {0xFF, 0x88, 0x33}, {0xFF, 0x9C, 0x12},
	{0xFA, 0xBC, 0x20}, {0x9F, 0xE3, 0x0E}, {0x2B, 0xF0, 0x35}, {0x0C, 0xF0, 0xA4},
	{0x05, 0xFB, 0xFF}, {0x5E, 0x5E, 0x5E}, {0x0D, 0x0D, 0x0D}, {0x0D, 0x0D, 0x0D},

	// 0x30-0x3F
	{0xFF, 0xFF, 0xFF}, {0xA6, 0xFC, 0xFF}, {0xB3, 0xEC, 0xFF}, {0xDA, 0xAB, 0xEB},
	{0xFF, 0xA8, 0xF9}, {0xFF, 0xAB, 0xB3}, {0xFF, 0xD2, 0xB0}, {0xFF, 0xEF, 0xA6},
	{0xFF, 0xF7, 0x9C}, {0xD7, 0xFF, 0xB3}, {0xC6, 0xFF, 0xDE}, {0xC4, 0xFF, 0xF6},
	{0xC4, 0xF0, 0xFF}, {0xCC, 0xCC, 0xCC}, {0x3C, 0x3C, 0x3C}, {0x3C, 0x3C, 0x3C},
}

// paletteMirror maps every $3F00-$3F1F offset onto the RAM slot it
// actually addresses: the four backdrop-mirror slots ($10/$14/$18/$1C)
// collapse onto their $x0 counterparts, everything else is the identity.
var paletteMirror = func() [32]uint8 {
	var m [32]uint8
	for i := range m {
		m[i] = uint8(i)
	}
	m[0x10], m[0x14], m[0x18], m[0x1C] = 0x00, 0x04, 0x08, 0x0C
	return m
}()

// PaletteManager owns the 32-byte palette RAM and the emphasis bits that
// modulate every color read out of it.
type PaletteManager struct {
	// Palette RAM (32 bytes)
	// 0x00-0x0F: background palettes (4 palettes x 4 colors)
	// 0x10-0x1F: sprite palettes (4 palettes x 4 colors)
	PaletteRAM [32]uint8

	// Emphasis holds PPUMASK's bits 5-7 (red/green/blue emphasis)
	Emphasis uint8
}

// NewPaletteManager returns a PaletteManager with a plausible power-up
// palette loaded, since real palette RAM is not guaranteed to start zeroed.
func NewPaletteManager() *PaletteManager {
	pm := &PaletteManager{}
	for i := range pm.PaletteRAM {
		pm.PaletteRAM[i] = 0x30
	}
	pm.PaletteRAM[0] = 0x0F // universal backdrop
	pm.PaletteRAM[1] = 0x30
	pm.PaletteRAM[2] = 0x10
	pm.PaletteRAM[3] = 0x00

	logger.LogPPU("palette RAM seeded with power-up defaults")
	return pm
}

// slot resolves a raw palette address to its backing RAM index, folding
// the backdrop mirrors.
func (pm *PaletteManager) slot(addr uint8) uint8 {
	return paletteMirror[addr&0x1F]
}

// ReadPalette reads a palette value with mirroring
func (pm *PaletteManager) ReadPalette(addr uint8) uint8 {
	return pm.PaletteRAM[pm.slot(addr)]
}

// WritePalette writes a palette value with mirroring
func (pm *PaletteManager) WritePalette(addr uint8, value uint8) {
	pm.PaletteRAM[pm.slot(addr)] = value & 0x3F // palette RAM is 6 bits wide
}

// GetBackgroundColor gets a background palette color
func (pm *PaletteManager) GetBackgroundColor(palette uint8, colorIndex uint8) uint32 {
	if palette > 3 || colorIndex > 3 {
		return 0xFF000000
	}
	if colorIndex == 0 {
		// color 0 of every background palette is the shared backdrop
		return pm.getARGBColor(pm.ReadPalette(0))
	}
	return pm.getARGBColor(pm.ReadPalette(palette*4 + colorIndex))
}

// GetSpriteColor gets a sprite palette color
func (pm *PaletteManager) GetSpriteColor(palette uint8, colorIndex uint8) uint32 {
	if palette > 3 || colorIndex > 3 || colorIndex == 0 {
		return 0x00000000 // color 0 is always transparent for sprites
	}
	return pm.getARGBColor(pm.ReadPalette(0x10 + palette*4 + colorIndex))
}

// getARGBColor converts a 6-bit palette index to 32-bit ARGB color
func (pm *PaletteManager) getARGBColor(paletteIndex uint8) uint32 {
	rgb := masterPalette[paletteIndex&0x3F]
	r, g, b := rgb[0], rgb[1], rgb[2]
	if pm.Emphasis != 0 {
		r, g, b = pm.applyEmphasis(r, g, b)
	}
	return 0xFF000000 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// applyEmphasis dims any channel PPUMASK's emphasis bits don't call out,
// approximating the color-emphasis circuit's effect in integer math.
func (pm *PaletteManager) applyEmphasis(r, g, b uint8) (uint8, uint8, uint8) {
	dim := func(c uint8) uint8 { return uint8(uint16(c) * 3 / 4) }
	if pm.Emphasis&PPUMASKRedEmphasize == 0 {
		r = dim(r)
	}
	if pm.Emphasis&PPUMASKGreenEmphasize == 0 {
		g = dim(g)
	}
	if pm.Emphasis&PPUMASKBlueEmphasize == 0 {
		b = dim(b)
	}
	return r, g, b
}

// SetEmphasis sets the color emphasis bits
func (pm *PaletteManager) SetEmphasis(emphasis uint8) {
	pm.Emphasis = emphasis & (PPUMASKRedEmphasize | PPUMASKGreenEmphasize | PPUMASKBlueEmphasize)
}

// GetPaletteDebugInfo returns debug information about current palettes
func (pm *PaletteManager) GetPaletteDebugInfo() map[string]interface{} {
	bgPalettes := make([][]uint32, 4)
	spritePalettes := make([][]uint32, 4)
	for palette := 0; palette < 4; palette++ {
		bgPalettes[palette] = make([]uint32, 4)
		spritePalettes[palette] = make([]uint32, 4)
		for color := 0; color < 4; color++ {
			bgPalettes[palette][color] = pm.GetBackgroundColor(uint8(palette), uint8(color))
			spritePalettes[palette][color] = pm.GetSpriteColor(uint8(palette), uint8(color))
		}
	}

	return map[string]interface{}{
		"background_palettes": bgPalettes,
		"sprite_palettes":     spritePalettes,
		"emphasis":            pm.Emphasis,
		"palette_ram":         pm.PaletteRAM,
	}
}
