package cart

import "fmt"

// Cartridge defines the minimal interface the Bus needs for ROM/RAM banking.
// Addresses are CPU addresses.
type Cartridge interface {
	// Read returns a byte for ROM (0x0000-0x7FFF) and external RAM (0xA000-0xBFFF).
	Read(addr uint16) byte
	// Write handles MBC control writes (0x0000-0x7FFF) and external RAM writes (0xA000-0xBFFF).
	Write(addr uint16, value byte)
	// SaveState/LoadState serialize internal banking registers and external RAM for save states.
	SaveState() []byte
	LoadState(data []byte)
}

// BatteryBacked is an optional interface for cartridges with external RAM to
// be persisted. SaveRAM may return nil/empty if no RAM is present.
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// UnsupportedMapperError is returned by NewCartridge when the header names a
// mapper this core does not implement (MBC2, MMM01), per spec §6/§7.
type UnsupportedMapperError struct {
	CartType byte
}

func (e *UnsupportedMapperError) Error() string {
	return fmt.Sprintf("unsupported cartridge mapper (type byte 0x%02X)", e.CartType)
}

// NewCartridge picks an implementation based on the ROM header. Returns an
// *UnsupportedMapperError for MBC2/MMM01 cartridge types; callers must treat
// that as fatal at ROM load, per spec §7.3.
func NewCartridge(rom []byte) (Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return NewROMOnly(rom), nil
	}
	switch h.CartType {
	case 0x00, 0x08, 0x09: // None; 0x08/0x09 (+RAM+Battery) also get ROMOnly, which has no external RAM
		return NewROMOnly(rom), nil
	case 0x01, 0x02, 0x03: // MBC1 variants
		return NewMBC1(rom, h.RAMSizeBytes), nil
	case 0x05, 0x06: // MBC2 — unsupported
		return nil, &UnsupportedMapperError{CartType: h.CartType}
	case 0x0B, 0x0C, 0x0D: // MMM01 — unsupported
		return nil, &UnsupportedMapperError{CartType: h.CartType}
	case 0x0F, 0x10, 0x11, 0x12, 0x13: // MBC3 variants (no RTC)
		return NewMBC3(rom, h.RAMSizeBytes), nil
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E: // MBC5 variants
		return NewMBC5(rom, h.RAMSizeBytes), nil
	default:
		return NewROMOnly(rom), nil
	}
}
