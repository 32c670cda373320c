package ppu

// Sprite attribute flags
const (
	SpriteFlipHorizontal = 0x40
	SpriteFlipVertical   = 0x80
	SpritePriority       = 0x20 // 0=front of background, 1=behind background
	SpritePaletteMask    = 0x03 // Palette selection (bits 0-1)
)

// backgroundPixel samples the current dot's background color index and
// attribute-palette selection out of the shift-register pipeline, picking
// the bit fine X points at.
func (p *PPU) backgroundPixel() (colorIndex, palette uint8) {
	mux := uint16(0x8000) >> p.x
	lo := uint8(0)
	if p.bgShiftPatternLo&mux != 0 {
		lo = 1
	}
	hi := uint8(0)
	if p.bgShiftPatternHi&mux != 0 {
		hi = 1
	}
	colorIndex = (hi << 1) | lo

	attrMux := uint8(0x80) >> p.x
	palLo := uint8(0)
	if p.bgShiftAttrLo&attrMux != 0 {
		palLo = 1
	}
	palHi := uint8(0)
	if p.bgShiftAttrHi&attrMux != 0 {
		palHi = 1
	}
	palette = (palHi << 1) | palLo
	return
}

// evaluateSprites scans primary OAM for sprites touching the next scanline
// and copies up to 8 of them into secondary OAM, preserving OAM order
// (lower index is higher display priority). Overflow beyond 8 candidates
// sets PPUSTATUSOverflow; this does not reproduce the real hardware's
// diagonal-read overflow bug, just the flag's end result.
func (p *PPU) evaluateSprites() {
	p.secondaryCount = 0
	p.sprite0InLine = false

	height := 8
	if p.PPUCTRL&PPUCTRLSpriteSize != 0 {
		height = 16
	}

	target := p.Scanline + 1
	i := 0
	for ; i < 64 && p.secondaryCount < 8; i++ {
		y := int(p.OAM[i*4])
		if target < y || target >= y+height {
			continue
		}
		copy(p.secondaryOAM[p.secondaryCount][:], p.OAM[i*4:i*4+4])
		if i == 0 {
			p.sprite0InLine = true
		}
		p.secondaryCount++
	}

	if p.secondaryCount == 8 {
		for ; i < 64; i++ {
			y := int(p.OAM[i*4])
			if target >= y && target < y+height {
				p.PPUSTATUS |= PPUSTATUSOverflow
				break
			}
		}
	}
}

// fetchSpritePatterns loads the pattern shift registers and X counters for
// every sprite evaluateSprites placed in secondary OAM, applying flips and
// the 8x16 tile-pair addressing rule as it goes.
func (p *PPU) fetchSpritePatterns() {
	height := 8
	if p.PPUCTRL&PPUCTRLSpriteSize != 0 {
		height = 16
	}
	target := p.Scanline + 1

	for i := 0; i < p.secondaryCount; i++ {
		y, tile, attr, x := p.secondaryOAM[i][0], p.secondaryOAM[i][1], p.secondaryOAM[i][2], p.secondaryOAM[i][3]

		row := target - int(y)
		if attr&SpriteFlipVertical != 0 {
			row = height - 1 - row
		}

		var base uint16
		patternTile := tile
		if height == 16 {
			patternTile = tile &^ 1
			if row >= 8 {
				patternTile++
				row -= 8
			}
			if tile&1 != 0 {
				base = 0x1000
			}
		} else if p.PPUCTRL&PPUCTRLSpriteTable != 0 {
			base = 0x1000
		}

		addr := base + uint16(patternTile)*16 + uint16(row)
		lo := p.readVRAM(addr)
		hi := p.readVRAM(addr + 8)
		if attr&SpriteFlipHorizontal != 0 {
			lo = reverseBits(lo)
			hi = reverseBits(hi)
		}

		p.spriteShiftLo[i] = lo
		p.spriteShiftHi[i] = hi
		p.spriteAttr[i] = attr
		p.spriteXCounter[i] = x
		p.spriteIsZero[i] = i == 0 && p.sprite0InLine
	}
}

// tickSpriteCounters runs once per visible dot: sprites still waiting for
// their X position count down, sprites already active shift their pattern
// registers out one bit.
func (p *PPU) tickSpriteCounters() {
	for i := 0; i < p.secondaryCount; i++ {
		if p.spriteXCounter[i] > 0 {
			p.spriteXCounter[i]--
			continue
		}
		p.spriteShiftLo[i] <<= 1
		p.spriteShiftHi[i] <<= 1
	}
}

// spritePixel returns the first (highest-priority) active sprite with a
// non-transparent pixel at the current dot.
func (p *PPU) spritePixel() (colorIndex, palette uint8, inFront, isZero bool) {
	for i := 0; i < p.secondaryCount; i++ {
		if p.spriteXCounter[i] != 0 {
			continue
		}
		lo := (p.spriteShiftLo[i] >> 7) & 1
		hi := (p.spriteShiftHi[i] >> 7) & 1
		idx := (hi << 1) | lo
		if idx == 0 {
			continue
		}
		attr := p.spriteAttr[i]
		return idx, attr & SpritePaletteMask, attr&SpritePriority == 0, p.spriteIsZero[i]
	}
	return 0, 0, false, false
}

func reverseBits(b uint8) uint8 {
	b = (b&0xF0)>>4 | (b&0x0F)<<4
	b = (b&0xCC)>>2 | (b&0x33)<<2
	b = (b&0xAA)>>1 | (b&0x55)<<1
	return b
}

// renderPixel composites the current dot's background and sprite pixels
// into the frame buffer, applying the left-edge clip masks and latching
// sprite-0 hit when both layers are opaque at once.
func (p *PPU) renderPixel() {
	x := p.Cycle - 1
	y := p.Scanline
	if x < 0 || x > 255 || y < 0 || y > 239 {
		return
	}

	backdrop := p.PaletteManager.GetBackgroundColor(0, 0)
	enabled := p.renderingEnabled()
	if !enabled {
		p.FrameBuffer[y*256+x] = backdrop
		return
	}

	bgIdx, bgPalette := p.backgroundPixel()
	bgOpaque := p.PPUMASK&PPUMASKBGShow != 0 &&
		!(x < 8 && p.PPUMASK&PPUMASKBGLeft == 0) &&
		bgIdx != 0
	bgColor := backdrop
	if bgOpaque {
		bgColor = p.PaletteManager.GetBackgroundColor(bgPalette, bgIdx)
	}

	spriteIdx, spritePalette, spriteInFront, spriteIsZero := p.spritePixel()
	spriteOpaque := p.PPUMASK&PPUMASKSpriteShow != 0 &&
		!(x < 8 && p.PPUMASK&PPUMASKSpriteLeft == 0) &&
		spriteIdx != 0

	var final uint32
	switch {
	case !bgOpaque && !spriteOpaque:
		final = backdrop
	case !bgOpaque:
		final = p.PaletteManager.GetSpriteColor(spritePalette, spriteIdx)
	case !spriteOpaque:
		final = bgColor
	default:
		if spriteInFront {
			final = p.PaletteManager.GetSpriteColor(spritePalette, spriteIdx)
		} else {
			final = bgColor
		}
		if spriteIsZero && p.PPUSTATUS&PPUSTATUSSprite0Hit == 0 && x != 255 {
			p.PPUSTATUS |= PPUSTATUSSprite0Hit
		}
	}

	idx := y*256 + x
	p.FrameBuffer[idx] = final
	p.PersistentFrameBuffer[idx] = final
	p.renderingOccurred = true
}
