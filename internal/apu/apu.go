package apu

import (
	"bytes"
	"encoding/gob"
)

// readMask ORs onto a register's stored value for bits that always read as 1
// (unused/write-only bits), per the standard DMG APU register layout. Index
// is addr-0xFF10.
var readMask = [0x30]byte{
	0x80, 0x3F, 0x00, 0xFF, 0xBF, // FF10-FF14 (NR10-NR14)
	0xFF, 0x3F, 0x00, 0xFF, 0xBF, // FF15-FF19 (NR20-NR24, FF15 unused)
	0x7F, 0xFF, 0x9F, 0xFF, 0xBF, // FF1A-FF1E (NR30-NR34)
	0xFF, 0xFF, 0x00, 0x00, 0xBF, // FF1F-FF23 (FF1F unused, NR41-NR44)
	0x00, 0x00, 0x70, 0xFF, 0xFF, // FF24-FF28 (NR50-NR52, FF27-28 unused)
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, // FF29-FF2D unused
	0xFF, 0xFF, // FF2E-FF2F unused
}

// APU is a register-storage stub: it retains the NR10-NR52 address map and
// wave RAM so games that probe or save/restore APU state behave correctly,
// but performs no channel synthesis or mixing. Audio output is out of scope.
type APU struct {
	regs [0x30]byte // FF10-FF2F
	wave [0x10]byte // FF30-FF3F
	on   bool
}

func New(sampleRate int) *APU {
	a := &APU{on: true}
	a.regs[0xFF24-0xFF10] = 0x77
	a.regs[0xFF25-0xFF10] = 0xF3
	a.regs[0xFF26-0xFF10] = 0xF1
	return a
}

// Step is a no-op: no audio is ever synthesized.
func (a *APU) Step(cycles int) {}

// Drain always reports no samples available.
func (a *APU) Drain(max int) []int16 { return nil }

func (a *APU) CPURead(addr uint16) byte {
	if addr >= 0xFF30 && addr <= 0xFF3F {
		return a.wave[addr-0xFF30]
	}
	if addr < 0xFF10 || addr > 0xFF3F {
		return 0xFF
	}
	i := addr - 0xFF10
	return a.regs[i] | readMask[i]
}

func (a *APU) CPUWrite(addr uint16, v byte) {
	if addr >= 0xFF30 && addr <= 0xFF3F {
		a.wave[addr-0xFF30] = v
		return
	}
	if addr < 0xFF10 || addr > 0xFF3F {
		return
	}
	if addr == 0xFF26 {
		a.on = v&0x80 != 0
		a.regs[addr-0xFF10] = v & 0x80
		if !a.on {
			for i := range a.regs[:0xFF26-0xFF10] {
				a.regs[i] = 0
			}
		}
		return
	}
	if !a.on && addr != 0xFF11 && addr != 0xFF16 && addr != 0xFF1B && addr != 0xFF20 {
		// Length-counter registers remain writable while the APU is off on
		// real hardware; everything else is ignored.
		return
	}
	a.regs[addr-0xFF10] = v
}

type apuState struct {
	Regs [0x30]byte
	Wave [0x10]byte
	On   bool
}

func (a *APU) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(apuState{a.regs, a.wave, a.on})
	return buf.Bytes()
}

func (a *APU) LoadState(data []byte) {
	var s apuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	a.regs, a.wave, a.on = s.Regs, s.Wave, s.On
}
