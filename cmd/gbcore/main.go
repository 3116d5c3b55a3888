// Command gbcore runs a Game Boy ROM, headless or in an ebiten-backed
// window. Exit code 0 on clean shutdown, 1 on fatal error, per spec.md §6.
package main

import (
	"flag"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/kjordahl/gbcore/internal/cart"
	"github.com/kjordahl/gbcore/internal/emu"
	"github.com/kjordahl/gbcore/internal/frontend"
	"github.com/kjordahl/gbcore/internal/save"
)

type cliFlags struct {
	ROMPath string
	BootROM string
	Scale   int
	Title   string
	Trace   bool
	SaveRAM bool

	Headless bool
	Frames   int
	PNGOut   string
	Expect   string
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.BootROM, "bootrom", "", "optional DMG boot ROM")
	flag.IntVar(&f.Scale, "scale", 4, "window scale")
	flag.StringVar(&f.Title, "title", "gbcore", "window title")
	flag.BoolVar(&f.Trace, "trace", false, "CPU trace log")
	flag.BoolVar(&f.SaveRAM, "save", true, "persist battery RAM to ROM.sav on exit and load on start (battery carts only)")

	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last framebuffer to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert framebuffer CRC32 of the raw palette-index buffer (hex)")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: gbcore [flags] <rom-path>")
		os.Exit(1)
	}
	f.ROMPath = flag.Arg(0)
	return f
}

// headlessFrontend accumulates frames without a window; it satisfies
// frontend.Frontend by handing the Machine a buffer it owns directly.
type headlessFrontend struct {
	fb    [160 * 144]byte
	fatal string
}

func (h *headlessFrontend) Framebuffer() []byte  { return h.fb[:] }
func (h *headlessFrontend) DrawDone()            {}
func (h *headlessFrontend) FatalError(msg string) { h.fatal = msg }

func runHeadless(m *emu.Machine, frames int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}
	h := &headlessFrontend{}

	start := time.Now()
	for i := 0; i < frames; i++ {
		if err := m.StepFrame(h); err != nil {
			return err
		}
		if h.fatal != "" {
			return fmt.Errorf("fatal: %s", h.fatal)
		}
	}
	dur := time.Since(start)

	crc := crc32.ChecksumIEEE(h.fb[:])
	fps := float64(frames) / dur.Seconds()
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), fps, crc)

	if pngPath != "" {
		if err := savePaletteframePNG(h.fb[:], 160, 144, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}

	if expectCRC != "" {
		want := expectCRC
		if len(want) > 1 && want[:2] == "0x" {
			want = want[2:]
		}
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

// dmgShades maps a 2-bit palette index to a display RGB triple; mirrors
// internal/frontend.EbitenApp's shade table so -outpng renders the same
// colors a window would.
var dmgShades = [4][3]byte{
	{0xE0, 0xF8, 0xD0},
	{0x88, 0xC0, 0x70},
	{0x34, 0x68, 0x56},
	{0x08, 0x18, 0x20},
}

func savePaletteframePNG(pix []byte, w, h int, path string) error {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, ci := range pix {
		shade := dmgShades[ci&0x03]
		img.Pix[i*4+0] = shade[0]
		img.Pix[i*4+1] = shade[1]
		img.Pix[i*4+2] = shade[2]
		img.Pix[i*4+3] = 0xFF
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

func run() error {
	f := parseFlags()

	rom := mustRead(f.ROMPath)
	boot := mustRead(f.BootROM)

	hasBattery := false
	if len(rom) >= 0x150 {
		if h, err := cart.ParseHeader(rom); err == nil {
			log.Printf("ROM: %q type=%s banks=%d ram=%dB", h.Title, h.CartTypeStr, h.ROMBanks, h.RAMSizeBytes)
			hasBattery = h.HasBattery()
		}
	}

	m := emu.New(emu.Config{Trace: f.Trace, LimitFPS: !f.Headless})

	absPath := f.ROMPath
	if abs, err := filepath.Abs(f.ROMPath); err == nil {
		absPath = abs
	}
	if err := m.LoadCartridge(rom, boot); err != nil {
		return fmt.Errorf("load cartridge: %w", err)
	}
	m.SetROMPath(absPath)

	savPath := save.PathFor(f.ROMPath)
	if f.SaveRAM && hasBattery {
		if data, err := save.Load(savPath); err == nil && data != nil {
			if m.LoadBattery(data) {
				log.Printf("loaded save RAM: %s (%d bytes)", savPath, len(data))
			}
		}
	}

	writeBattery := func() {
		if !f.SaveRAM || !hasBattery {
			return
		}
		if data, ok := m.SaveBattery(); ok {
			if err := save.Save(savPath, data); err == nil {
				log.Printf("wrote %s", savPath)
			}
		}
	}

	if f.Headless {
		err := runHeadless(m, f.Frames, f.PNGOut, f.Expect)
		writeBattery()
		return err
	}

	app := frontend.NewEbitenApp(frontend.EbitenConfig{Title: f.Title, Scale: f.Scale}, m)
	err := app.Run()
	writeBattery()
	return err
}

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
