package ppu

// Sprite is one decoded OAM entry, exposed for composition and testing.
type Sprite struct {
	Y, X     byte
	Tile     byte
	Attr     byte
	OAMIndex int
}

// decodePalette expands a BGP/OBPn byte into 4 shades.
func decodePalette(reg byte) [4]byte {
	return [4]byte{reg & 0x03, (reg >> 2) & 0x03, (reg >> 4) & 0x03, (reg >> 6) & 0x03}
}

// renderScanline composes background, window, and sprites for line ly into
// the framebuffer. Called once per visible line at the DATA_TRANSFER->HBLANK
// transition.
func (p *PPU) renderScanline(ly byte) {
	var bgci [160]byte // raw palette indices before BGP translation; composeSprites does not read them
	unsigned := p.lcdc&0x10 != 0

	if p.lcdc&0x01 != 0 {
		mapBase := uint16(0x9800)
		if p.lcdc&0x08 != 0 {
			mapBase = 0x9C00
		}
		bgY := uint16(ly) + uint16(p.scy)
		mapY := (bgY >> 3) & 31
		fineY := byte(bgY & 7)
		bgPal := decodePalette(p.bgp)
		for x := 0; x < 160; x++ {
			bgX := (uint16(x) + uint16(p.scx)) & 0xFF
			mapX := (bgX >> 3) & 31
			raw := p.vram[mapBase-0x8000+mapY*32+mapX]
			tile := tileIndex(raw, unsigned)
			ci := p.tiles[tile][fineY][bgX&7]
			bgci[x] = ci
			p.fb[int(ly)*160+x] = bgPal[ci]
		}
	} else {
		for x := 0; x < 160; x++ {
			p.fb[int(ly)*160+x] = 0
		}
	}

	if p.lcdc&0x20 != 0 && ly >= p.wy {
		wxStart := int(p.wx) - 7
		if wxStart < 160 {
			mapBase := uint16(0x9800)
			if p.lcdc&0x40 != 0 {
				mapBase = 0x9C00
			}
			winLine := ly - p.wy
			mapY := (uint16(winLine) >> 3) & 31
			fineY := byte(winLine & 7)
			start := wxStart
			if start < 0 {
				start = 0
			}
			for x := start; x < 160; x++ {
				winX := uint16(x - wxStart)
				mapX := (winX >> 3) & 31
				raw := p.vram[mapBase-0x8000+mapY*32+mapX]
				tile := tileIndex(raw, unsigned)
				ci := p.tiles[tile][fineY][winX&7]
				bgci[x] = ci
				// Window pixels are written as raw palette indices, without
				// BGP translation (matches the documented defect).
				p.fb[int(ly)*160+x] = ci
			}
		}
	}

	if p.lcdc&0x02 != 0 {
		p.composeSprites(ly, bgci)
	}
}

// composeSprites draws sprite pixels for line ly onto the framebuffer.
// Sprites are visited in reverse OAM index order so lower-indexed sprites
// overwrite higher-indexed ones at the same pixel; the 10-sprite-per-line
// limit, left-most-X priority, and sprite-behind-BG are not enforced.
func (p *PPU) composeSprites(ly byte, bgci [160]byte) {
	tall := p.lcdc&0x04 != 0
	height := 8
	if tall {
		height = 16
	}
	obp0, obp1 := decodePalette(p.obp0), decodePalette(p.obp1)

	for i := 39; i >= 0; i-- {
		base := i * 4
		sy := p.oam[base]
		sx := p.oam[base+1]
		tile := p.oam[base+2]
		attr := p.oam[base+3]

		screenY := int(sy) - 16
		screenX := int(sx) - 8
		row := int(ly) - screenY
		if row < 0 || row >= height {
			continue
		}
		if attr&(1<<6) != 0 { // Y flip
			row = height - 1 - row
		}
		t := int(tile)
		if tall {
			t &^= 1
			if row >= 8 {
				t++
				row -= 8
			}
		}

		pal := obp0
		if attr&(1<<4) != 0 {
			pal = obp1
		}
		xflip := attr&(1<<5) != 0

		for col := 0; col < 8; col++ {
			sxp := screenX + col
			if sxp < 0 || sxp >= 160 {
				continue
			}
			srcCol := col
			if xflip {
				srcCol = 7 - col
			}
			ci := p.tiles[t][row][srcCol]
			if ci == 0 {
				continue
			}
			p.fb[int(ly)*160+sxp] = pal[ci]
		}
	}
}
