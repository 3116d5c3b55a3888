package cart

import (
	"bytes"
	"encoding/gob"
)

// MBC1 implements MBC1 ROM/RAM banking (up to 2 MiB ROM / 32 KiB RAM).
type MBC1 struct {
	rom []byte
	ram []byte

	romBankLow5       byte // lower 5 bits of ROM bank number (0 remaps to 1)
	ramBankOrRomHigh2 byte // RAM bank in RAM mode, ROM-bank-high bits in ROM mode
	ramEnabled        bool
	modeSelect        byte // 0: ROM banking, 1: RAM banking
}

func NewMBC1(rom []byte, ramSize int) *MBC1 {
	m := &MBC1{rom: rom, romBankLow5: 1}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	return m
}

func (m *MBC1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		// Always bank 0: in RAM mode reg2 selects only the RAM bank.
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.effectiveROMBank())
		off := bank*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		off := m.ramOffset(addr)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		m.romBankLow5 = value & 0x1F
		if m.romBankLow5 == 0 {
			m.romBankLow5 = 1
		}
	case addr < 0x6000:
		m.ramBankOrRomHigh2 = value & 0x03
	case addr < 0x8000:
		m.modeSelect = value & 0x01
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		off := m.ramOffset(addr)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *MBC1) ramOffset(addr uint16) int {
	ramBank := 0
	if m.modeSelect == 1 {
		ramBank = int(m.ramBankOrRomHigh2 & 0x03)
	}
	return ramBank*0x2000 + int(addr-0xA000)
}

// effectiveROMBank combines the low-5 bank register with reg2's high bits,
// but reg2 only contributes ROM-bank-high bits in ROM mode (mode 0); in RAM
// mode (mode 1) reg2 selects the RAM bank instead and does not affect the
// ROM bank, per spec §9's resolution of the mode-gating question. The
// teacher's version applied reg2's high bits unconditionally; this fixes it.
func (m *MBC1) effectiveROMBank() byte {
	if m.modeSelect == 1 {
		return m.romBankLow5
	}
	high := m.ramBankOrRomHigh2 & 0x03
	return m.romBankLow5 | (high << 5)
}

type mbc1State struct {
	RomBankLow5 byte
	RamHigh2    byte
	RamEnabled  bool
	ModeSelect  byte
	RAM         []byte
}

func (m *MBC1) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(mbc1State{m.romBankLow5, m.ramBankOrRomHigh2, m.ramEnabled, m.modeSelect, m.ram})
	return buf.Bytes()
}

func (m *MBC1) LoadState(data []byte) {
	var s mbc1State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	m.romBankLow5, m.ramBankOrRomHigh2 = s.RomBankLow5, s.RamHigh2
	m.ramEnabled, m.modeSelect = s.RamEnabled, s.ModeSelect
	if len(s.RAM) == len(m.ram) {
		copy(m.ram, s.RAM)
	}
}

func (m *MBC1) SaveRAM() []byte {
	if len(m.ram) == 0 {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC1) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	copy(m.ram, data)
}
