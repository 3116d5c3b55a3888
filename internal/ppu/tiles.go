package ppu

// tileCache holds the decoded 384 tiles addressable by VRAM region 0x8000-0x97FF,
// each as 8 rows of 8 two-bit palette indices. It is kept coherent with VRAM on
// every CPU write so scanline composition never has to re-decode raw bytes.
type tileCache [384][8][8]byte

// decodeTile re-derives tile n's pixel rows from the raw VRAM bytes at its
// 16-byte region. Byte 2k holds the low bit of each column of row k (bit N of
// the byte is the low bit of column 7-N); byte 2k+1 holds the high bit.
func (tc *tileCache) decodeTile(vram *[0x2000]byte, n int) {
	base := n * 16
	for row := 0; row < 8; row++ {
		lo := vram[base+row*2]
		hi := vram[base+row*2+1]
		for col := 0; col < 8; col++ {
			bit := 7 - col
			ci := ((hi>>uint(bit))&1)<<1 | ((lo >> uint(bit)) & 1)
			tc[n][row][col] = ci
		}
	}
}

// touchVRAMWrite re-decodes whichever tile owns the written byte, if any.
// addr is a VRAM-relative offset (0..0x1FFF).
func (tc *tileCache) touchVRAMWrite(vram *[0x2000]byte, addr uint16) {
	if addr >= 0x1800 { // 0x9800-0x9FFF is the tile maps, not tile data
		return
	}
	tile := int(addr / 16)
	tc.decodeTile(vram, tile)
}

// tileIndex resolves a raw tile-map byte to an index into tileCache, honoring
// LCDC bit 4's addressing mode: unsigned 0..255 at 0x8000, or signed with a
// bias of 256 (effective range 128..383) at 0x8800.
func tileIndex(raw byte, unsigned bool) int {
	if unsigned {
		return int(raw)
	}
	return 256 + int(int8(raw))
}
