package cpu

import (
	"testing"

	"github.com/kjordahl/gbcore/internal/bus"
)

func newCPUWithROM(t *testing.T, code []byte) *CPU {
	t.Helper()
	rom := make([]byte, 0x8000)
	copy(rom, code)
	b, err := bus.New(rom)
	if err != nil {
		t.Fatalf("bus.New: %v", err)
	}
	return New(b)
}

func mustStep(t *testing.T, c *CPU) int {
	t.Helper()
	cycles, err := c.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	return cycles
}

func TestCPU_NopAndPC(t *testing.T) {
	c := newCPUWithROM(t, []byte{0x00}) // NOP
	if cycles := mustStep(t, c); cycles != 4 {
		t.Fatalf("NOP cycles got %d want 4", cycles)
	}
	if c.PC != 1 {
		t.Fatalf("PC after NOP got %#04x want 0x0001", c.PC)
	}
}

func TestCPU_LD_A_d8_And_XOR_A(t *testing.T) {
	c := newCPUWithROM(t, []byte{0x3E, 0x12, 0xAF}) // LD A,0x12; XOR A
	mustStep(t, c)                                  // LD
	if c.A != 0x12 {
		t.Fatalf("A after LD got %02x want 12", c.A)
	}
	mustStep(t, c) // XOR A
	if c.A != 0x00 {
		t.Fatalf("A after XOR got %02x want 00", c.A)
	}
	if c.F != flagZ {
		t.Fatalf("F after XOR A got %#02x want only Z set (%#02x)", c.F, flagZ)
	}
}

func TestCPU_ADD_A_A_HalfCarry(t *testing.T) {
	// ADD A,A with A=0x08 must set H (0x08+0x08 carries out of bit 3) but not C.
	c := newCPUWithROM(t, []byte{0x87})
	c.A = 0x08
	mustStep(t, c)
	if c.A != 0x10 {
		t.Fatalf("A after ADD A,A got %#02x want 10", c.A)
	}
	if (c.F & flagH) == 0 {
		t.Fatalf("expected H flag set on ADD A,A with A=0x08")
	}
	if (c.F & flagC) != 0 {
		t.Fatalf("C flag unexpectedly set on ADD A,A with A=0x08")
	}
	if (c.F & flagZ) != 0 {
		t.Fatalf("Z flag unexpectedly set")
	}
}

func TestCPU_POP_AF_MasksLowerNibble(t *testing.T) {
	// Push 0x12FF onto the stack, then POP AF: the lower 4 bits of F must
	// always read back as 0 regardless of what was on the stack.
	c := newCPUWithROM(t, []byte{0xF1}) // POP AF
	c.SP = 0xC010
	c.push16(0x12FF)
	mustStep(t, c)
	if c.A != 0x12 {
		t.Fatalf("A after POP AF got %#02x want 12", c.A)
	}
	if c.F&0x0F != 0 {
		t.Fatalf("F lower nibble after POP AF got %#02x want 0", c.F&0x0F)
	}
	if c.F != 0xF0 {
		t.Fatalf("F after POP AF got %#02x want F0 (all flag bits from stack)", c.F)
	}
}

func TestCPU_JR_NZ_CostsFewerCyclesWhenNotTaken(t *testing.T) {
	c := newCPUWithROM(t, []byte{0x20, 0x05}) // JR NZ,+5
	c.F = flagZ                               // Z set -> branch not taken
	cycles := mustStep(t, c)
	if cycles != 8 {
		t.Fatalf("JR NZ not-taken cycles got %d want 8", cycles)
	}
	if c.PC != 2 {
		t.Fatalf("PC after not-taken JR NZ got %#04x want 0x0002", c.PC)
	}

	c2 := newCPUWithROM(t, []byte{0x20, 0x05})
	c2.F = 0 // Z clear -> branch taken
	cycles2 := mustStep(t, c2)
	if cycles2 != 12 {
		t.Fatalf("JR NZ taken cycles got %d want 12", cycles2)
	}
	if c2.PC != 2+5 {
		t.Fatalf("PC after taken JR NZ got %#04x want %#04x", c2.PC, 2+5)
	}
}

func TestCPU_LD_a16_A_and_LD_A_a16(t *testing.T) {
	// Program: LD A,0x77; LD (0xC000),A; LD A,0x00; LD A,(0xC000)
	prog := []byte{0x3E, 0x77, 0xEA, 0x00, 0xC0, 0x3E, 0x00, 0xFA, 0x00, 0xC0}
	c := newCPUWithROM(t, prog)
	mustStep(t, c) // LD A,77
	mustStep(t, c) // LD (C000),A
	if a := c.bus.Read(0xC000); a != 0x77 {
		t.Fatalf("WRAM at C000 got %02x want 77", a)
	}
	mustStep(t, c) // LD A,00
	mustStep(t, c) // LD A,(C000)
	if c.A != 0x77 {
		t.Fatalf("A after LD A,(C000) got %02x want 77", c.A)
	}
}

func TestCPU_JP_and_JR(t *testing.T) {
	// JP to 0x0010 then JR -2 to loop
	prog := []byte{0xC3, 0x10, 0x00} // at 0x0000: JP 0x0010
	rom := make([]byte, 0x8000)
	copy(rom, prog)
	for i := 0x0003; i < 0x0010; i++ {
		rom[i] = 0x00
	}
	// at 0x0010: JR -2 (0xFE), which will hop back to 0x0010 itself (infinite)
	rom[0x0010] = 0x18
	rom[0x0011] = 0xFE
	b, err := bus.New(rom)
	if err != nil {
		t.Fatalf("bus.New: %v", err)
	}
	c := New(b)
	cycles := mustStep(t, c) // JP
	if cycles != 16 || c.PC != 0x0010 {
		t.Fatalf("JP cycles=%d PC=%#04x want cycles=16 PC=0x0010", cycles, c.PC)
	}
	pcBefore := c.PC
	mustStep(t, c)         // JR -2
	if c.PC != pcBefore { // stays at 0x0010
		t.Fatalf("JR -2 PC got %#04x want %#04x", c.PC, pcBefore)
	}
}

func TestCPU_INC_B_Flags(t *testing.T) {
	c := newCPUWithROM(t, []byte{0x04, 0x04}) // INC B twice
	c.B = 0x0F
	c.F = 0x10 // carry set initially
	mustStep(t, c)
	if c.B != 0x10 {
		t.Fatalf("INC B result got %02x want 10", c.B)
	}
	if (c.F & 0x20) == 0 { // H set
		t.Fatalf("INC B should set H flag")
	}
	if (c.F & 0x10) == 0 { // C preserved
		t.Fatalf("INC B should preserve C flag")
	}
	c.B = 0xFF
	mustStep(t, c)
	if c.B != 0x00 || (c.F&0x80) == 0 { // Z set
		t.Fatalf("INC B to 0 should set Z flag, B=%02x, F=%02x", c.B, c.F)
	}
}

func TestCPU_LD_16bit_and_LDH(t *testing.T) {
	// Program:
	// LD HL,0xC000; LD (HL),0x5A; LD A,0x00; LD A,(0xFF00+0x00); LD (0xFF00+1),A
	prog := []byte{
		0x21, 0x00, 0xC0, // LD HL, C000
		0x36, 0x5A, // LD (HL), 5A
		0x3E, 0x00, // LD A, 00
		0xF0, 0x00, // LD A, (FF00+0)
		0xE0, 0x01, // LD (FF00+1), A
	}
	c := newCPUWithROM(t, prog)
	// Set the JOYP select bits so the read of FF00 is deterministic; FF80
	// (HRAM) gets 0xA7 but the program never reads it.
	c.Bus().Write(0xFF00, 0x20) // select dpad so read is deterministic
	c.Bus().Write(0xFF00, 0x30) // select none to keep 0x0F
	c.Bus().Write(0xFF80, 0xA7) // HRAM base

	for i := 0; i < 5; i++ {
		mustStep(t, c)
	}
	if v := c.Bus().Read(0xC000); v != 0x5A {
		t.Fatalf("WRAM C000 got %02x want 5A", v)
	}
	if v := c.Bus().Read(0xFF01); v != c.A {
		t.Fatalf("LDH (FF00+1),A expected write to FF01 with A=%02x got %02x", c.A, v)
	}
}

func TestCPU_CALL_RET(t *testing.T) {
	// 0000: CALL 0005; NOP; NOP; RET
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0xCD
	rom[0x0001] = 0x05
	rom[0x0002] = 0x00
	for i := 0x0003; i < 0x0005; i++ {
		rom[i] = 0x00
	}
	rom[0x0005] = 0xC9 // RET
	b, err := bus.New(rom)
	if err != nil {
		t.Fatalf("bus.New: %v", err)
	}
	c := New(b)
	mustStep(t, c) // CALL
	if c.PC != 0x0005 {
		t.Fatalf("PC after CALL got %04x want 0005", c.PC)
	}
	retCycles := mustStep(t, c)
	if c.PC != 0x0003 || retCycles != 16 {
		t.Fatalf("RET did not return to 0003; PC=%04x cyc=%d", c.PC, retCycles)
	}
}

func TestCPU_FatalOpcodeFault(t *testing.T) {
	for _, op := range []byte{0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD} {
		c := newCPUWithROM(t, []byte{op})
		cycles, err := c.Step()
		if err == nil {
			t.Fatalf("opcode %#02X: expected FatalOpcodeError, got nil", op)
		}
		fe, ok := err.(*FatalOpcodeError)
		if !ok {
			t.Fatalf("opcode %#02X: expected *FatalOpcodeError, got %T", op, err)
		}
		if fe.Opcode != op || fe.PC != 0 {
			t.Fatalf("opcode %#02X: fault got opcode=%#02X pc=%#04x", op, fe.Opcode, fe.PC)
		}
		if cycles != 0 {
			t.Fatalf("opcode %#02X: expected 0 cycles consumed on fault, got %d", op, cycles)
		}
		if c.PC != 0 {
			t.Fatalf("opcode %#02X: PC must not advance on fault, got %#04x", op, c.PC)
		}
	}
}

func TestCPU_VBlankInterruptDispatch(t *testing.T) {
	rom := make([]byte, 0x8000)
	b, err := bus.New(rom)
	if err != nil {
		t.Fatalf("bus.New: %v", err)
	}
	c := New(b)
	c.IME = true
	c.SP = 0xFFFE
	c.bus.Write(0xFFFF, 0x01) // IE: VBlank enabled
	c.bus.Write(0xFF0F, 0x01) // IF: VBlank pending
	c.PC = 0x0150

	cycles := mustStep(t, c)
	if cycles != 20 {
		t.Fatalf("interrupt dispatch cycles got %d want 20", cycles)
	}
	if c.PC != 0x0040 {
		t.Fatalf("PC after VBlank dispatch got %#04x want 0x0040", c.PC)
	}
	if c.IME {
		t.Fatalf("IME should be cleared after servicing an interrupt")
	}
	if sp := c.pop16(); sp != 0x0150 {
		t.Fatalf("pushed return address got %#04x want 0x0150", sp)
	}
	if c.bus.Read(0xFF0F)&0x01 != 0 {
		t.Fatalf("IF VBlank bit should be cleared after servicing")
	}
}
