package emu

import (
	"io"
	"log"
	"os"

	"github.com/kjordahl/gbcore/internal/bus"
	"github.com/kjordahl/gbcore/internal/cart"
	"github.com/kjordahl/gbcore/internal/cpu"
	"github.com/kjordahl/gbcore/internal/frontend"
)

// Machine is the owning value that ties Bus and CPU together: one value
// holding sub-components that each keep mutable references into it, per
// spec.md §9. PPU and Timer live inside the Bus; Machine only drives CPU
// steps, and each CPU step ticks the Bus.
type Machine struct {
	bus *bus.Bus
	cpu *cpu.CPU
	cfg Config

	romPath string
}

// New constructs a Machine with no cartridge loaded. Call LoadCartridge or
// LoadROMFromFile before stepping.
func New(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// LoadCartridge wires a fresh Bus/CPU around rom. boot, if at least 256
// bytes, is mapped at 0x0000-0x00FF and the CPU starts executing it from
// PC=0x0000; otherwise the CPU is initialized to DMG post-boot state and
// starts at 0x0100, matching cmd/gbtrace's no-bootrom defaults.
//
// Returns *cart.UnsupportedMapperError for MBC2/MMM01 cartridge types
// (spec.md §7's "Unsupported cartridge" fatal case).
func (m *Machine) LoadCartridge(rom, boot []byte) error {
	b, err := bus.New(rom)
	if err != nil {
		return err
	}
	m.bus = b

	if len(boot) >= 0x100 {
		b.SetBootROM(boot)
	}

	c := cpu.New(b)
	if len(boot) >= 0x100 {
		c.SP = 0xFFFE
		c.PC = 0x0000
		c.IME = true
	} else {
		c.ResetNoBoot()
		c.SetPC(0x0100)
		b.Write(0xFF00, 0xCF)
		b.Write(0xFF05, 0x00) // TIMA
		b.Write(0xFF06, 0x00) // TMA
		b.Write(0xFF07, 0x00) // TAC
		b.Write(0xFF40, 0x91) // LCDC on, BG+sprites
		b.Write(0xFF42, 0x00) // SCY
		b.Write(0xFF43, 0x00) // SCX
		b.Write(0xFF45, 0x00) // LYC
		b.Write(0xFF47, 0xFC) // BGP
		b.Write(0xFF48, 0xFF) // OBP0
		b.Write(0xFF49, 0xFF) // OBP1
		b.Write(0xFF4A, 0x00) // WY
		b.Write(0xFF4B, 0x00) // WX
		b.Write(0xFFFF, 0x00) // IE
	}
	m.cpu = c
	return nil
}

// LoadROMFromFile reads a .gb/.gbc file from disk and loads it with no boot
// ROM. It records the path so ROMPath and battery-save derivation work.
func (m *Machine) LoadROMFromFile(path string) error {
	rom, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.LoadCartridge(rom, nil); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// ROMPath returns the path passed to LoadROMFromFile (or SetROMPath), or ""
// if the Machine was loaded via LoadCartridge directly.
func (m *Machine) ROMPath() string { return m.romPath }

// SetROMPath records path for ROMPath()/battery-save derivation without
// reloading the cartridge, useful when the caller already called
// LoadCartridge with a boot ROM and only wants to associate a file path.
func (m *Machine) SetROMPath(path string) { m.romPath = path }

// SetBootROM installs (or, given data shorter than 256 bytes, clears) a
// boot ROM overlay on the running Bus.
func (m *Machine) SetBootROM(data []byte) {
	if m.bus != nil {
		m.bus.SetBootROM(data)
	}
}

// SetSerialWriter routes serial-port output (FF01/FF02) to w.
func (m *Machine) SetSerialWriter(w io.Writer) {
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// SetButtons sets the currently-pressed joypad buttons; see bus.Joyp*
// constants for the bitmask.
func (m *Machine) SetButtons(mask byte) {
	if m.bus != nil {
		m.bus.SetJoypadState(mask)
	}
}

// Framebuffer returns the PPU's live 160*144 palette-index buffer.
func (m *Machine) Framebuffer() []byte { return m.bus.PPU().Framebuffer() }

// SaveBattery returns the cartridge's external RAM contents for battery
// saves, or ok=false if the cartridge has no RAM to save.
func (m *Machine) SaveBattery() (data []byte, ok bool) {
	bb, isBattery := m.bus.Cart().(cart.BatteryBacked)
	if !isBattery {
		return nil, false
	}
	data = bb.SaveRAM()
	return data, data != nil
}

// LoadBattery restores previously-saved external RAM contents, returning
// false if the cartridge has no RAM to load into.
func (m *Machine) LoadBattery(data []byte) bool {
	bb, isBattery := m.bus.Cart().(cart.BatteryBacked)
	if !isBattery {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// SaveState serializes the Bus, which in turn serializes
// Timer/APU/PPU/cartridge. The CPU's register file is not included.
func (m *Machine) SaveState() []byte {
	return m.bus.SaveState()
}

// LoadState restores a snapshot produced by SaveState.
func (m *Machine) LoadState(data []byte) {
	m.bus.LoadState(data)
}

// StepFrame runs CPU/Bus ticks, exactly the loop in spec.md §4.5 (CPU.step
// drives PPU.step/Timer.step via Bus.Tick, with interrupt dispatch folded
// into CPU.Step), until the PPU reports a completed frame, then copies the
// framebuffer into f and calls f.DrawDone. f may be nil to run headless
// (see StepFrameNoRender).
//
// On a fatal opcode fault it calls f.FatalError (if f is non-nil) and
// returns the error without completing the frame.
func (m *Machine) StepFrame(f frontend.Frontend) error {
	p := m.bus.PPU()
	p.ClearFrameDone()
	for !p.FrameDone() {
		if m.cfg.Trace {
			log.Printf("PC=%04X", m.cpu.PC)
		}
		// CPU.Step ticks the Bus itself (see internal/cpu's deferred
		// Bus.Tick) with the cycles it actually consumed, so PPU/Timer/APU
		// stay locked to the shared clock; do not tick again here.
		if _, err := m.cpu.Step(); err != nil {
			if f != nil {
				f.FatalError(err.Error())
			}
			return err
		}
	}
	if f != nil {
		copy(f.Framebuffer(), p.Framebuffer())
		f.DrawDone()
	}
	return nil
}

// StepFrameNoRender runs one frame without a Frontend, for tests and
// serial-output-driven tools (see internal/emu/blargg_test.go).
func (m *Machine) StepFrameNoRender() error {
	return m.StepFrame(nil)
}
