// Command gbtrace runs a ROM headlessly against the CPU/Bus directly (no
// PPU-driven frame pacing), watching the serial port for a blargg-style
// "Passed"/"Failed N tests" marker. Useful for driving CPU instruction test
// ROMs without a window.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/kjordahl/gbcore/internal/bus"
	"github.com/kjordahl/gbcore/internal/cpu"
)

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gb)")
	bootPath := flag.String("bootrom", "", "optional DMG boot ROM to run from 0x0000 until FF50 disables it")
	steps := flag.Int("steps", 5_000_000, "max CPU steps to run")
	startPC := flag.Int("pc", 0x0100, "initial PC value")
	trace := flag.Bool("trace", false, "print PC/opcodes")
	until := flag.String("until", "Passed", "stop when serial output contains this substring (case-insensitive); empty to disable")
	auto := flag.Bool("auto", false, "auto-detect 'Passed' or 'Failed N tests' in serial output and exit with code 0/1")
	timeout := flag.Duration("timeout", 0, "optional wall-clock timeout (e.g. 30s, 2m); 0 disables")
	flag.Parse()

	if *romPath == "" {
		log.Fatal("-rom is required")
	}
	rom, err := os.ReadFile(*romPath)
	if err != nil {
		log.Fatalf("read rom: %v", err)
	}
	var boot []byte
	if *bootPath != "" {
		if b, err := os.ReadFile(*bootPath); err == nil {
			boot = b
		} else {
			log.Fatalf("read bootrom: %v", err)
		}
	}

	b, err := bus.New(rom)
	if err != nil {
		log.Fatalf("load cartridge: %v", err)
	}
	if len(boot) >= 0x100 {
		b.SetBootROM(boot)
	}

	var ser bytes.Buffer
	if *until != "" || *auto {
		b.SetSerialWriter(&ser)
	} else {
		b.SetSerialWriter(os.Stdout)
	}

	c := cpu.New(b)
	if len(boot) >= 0x100 {
		c.SP = 0xFFFE
		c.PC = 0x0000
		c.IME = true
	} else {
		c.ResetNoBoot()
		c.SetPC(uint16(*startPC))
		b.Write(0xFF00, 0xCF)
		b.Write(0xFF05, 0x00)
		b.Write(0xFF06, 0x00)
		b.Write(0xFF07, 0x00)
		b.Write(0xFF40, 0x91)
		b.Write(0xFF42, 0x00)
		b.Write(0xFF43, 0x00)
		b.Write(0xFF45, 0x00)
		b.Write(0xFF47, 0xFC)
		b.Write(0xFF48, 0xFF)
		b.Write(0xFF49, 0xFF)
		b.Write(0xFF4A, 0x00)
		b.Write(0xFF4B, 0x00)
		b.Write(0xFFFF, 0x00)
	}

	start := time.Now()
	var deadline time.Time
	if *timeout > 0 {
		deadline = start.Add(*timeout)
	}
	failRe := regexp.MustCompile(`(?i)failed\s+(\d+)\s+tests?`)

	var cycles int
	for i := 0; i < *steps; i++ {
		pc := c.PC
		var op byte
		if *trace {
			op = b.Read(pc)
		}
		cyc, err := c.Step()
		if err != nil {
			fmt.Printf("\nFatal opcode fault: %v\n", err)
			os.Exit(1)
		}
		cycles += cyc
		if *trace {
			fmt.Printf("PC=%04X OP=%02X cyc=%d A=%02X F=%02X B=%02X C=%02X D=%02X E=%02X H=%02X L=%02X SP=%04X IME=%t\n",
				pc, op, cyc, c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L, c.SP, c.IME)
		}
		if *auto {
			s := ser.String()
			if strings.Contains(strings.ToLower(s), "passed") {
				fmt.Printf("\nDetected PASS in serial output.\nDone: steps=%d cycles~=%d elapsed=%s\n",
					i+1, cycles, time.Since(start).Truncate(time.Millisecond))
				os.Exit(0)
			}
			if m := failRe.FindStringSubmatch(s); m != nil {
				fmt.Printf("\nDetected %s in serial output.\nDone: steps=%d cycles~=%d elapsed=%s\n",
					m[0], i+1, cycles, time.Since(start).Truncate(time.Millisecond))
				os.Exit(1)
			}
		} else if *until != "" {
			if strings.Contains(strings.ToLower(ser.String()), strings.ToLower(*until)) {
				fmt.Printf("\nDetected '%s' in serial output.\nDone: steps=%d cycles~=%d elapsed=%s\n",
					*until, i+1, cycles, time.Since(start).Truncate(time.Millisecond))
				return
			}
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			fmt.Printf("\nTimeout after %s.\n", time.Since(start).Truncate(time.Millisecond))
			os.Exit(2)
		}
	}
	fmt.Printf("\nDone: steps=%d cycles~=%d elapsed=%s\n", *steps, cycles, time.Since(start).Truncate(time.Millisecond))
}
