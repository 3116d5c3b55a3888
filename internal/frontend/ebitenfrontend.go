package frontend

import (
	"fmt"
	"log"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/kjordahl/gbcore/internal/bus"
)

// machine is the part of *emu.Machine that EbitenApp drives. It is an
// interface so this package does not import internal/emu, which imports it.
type machine interface {
	SetButtons(mask byte)
	StepFrame(f Frontend) error
}

// EbitenConfig controls the windowed frontend's presentation only; it has no
// effect on emulation.
type EbitenConfig struct {
	Scale int
	Title string
}

func (c *EbitenConfig) defaults() {
	if c.Scale <= 0 {
		c.Scale = 4
	}
	if c.Title == "" {
		c.Title = "gbcore"
	}
}

// dmgShades maps a 2-bit palette index (as produced by the PPU: background
// and sprite pixels already run through BGP/OBP0/OBP1, window pixels raw) to
// an on-screen grayscale shade, lightest first.
var dmgShades = [4][3]byte{
	{0xE0, 0xF8, 0xD0},
	{0x88, 0xC0, 0x70},
	{0x34, 0x68, 0x56},
	{0x08, 0x18, 0x20},
}

// EbitenApp is an ebiten.Game that owns the on-screen window: it drives one
// Machine.StepFrame per tick, polls the keyboard into the joypad byte, and
// paces to ebiten's default tick rate of 60 TPS. It implements
// Frontend itself, so the Machine writes directly into its palette buffer.
//
// Grounded on the teacher's internal/ui/ebitenapp.go Update/Draw/Layout
// loop, trimmed to framebuffer + joypad only: no menu, no audio, no
// save-state UI.
type EbitenApp struct {
	cfg EbitenConfig
	m   machine

	paletteBuf [160 * 144]byte
	tex        *ebiten.Image
	rgba       []byte

	fatal string
}

// NewEbitenApp wires cfg and m into a ready-to-run ebiten.Game.
func NewEbitenApp(cfg EbitenConfig, m machine) *EbitenApp {
	cfg.defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	return &EbitenApp{
		cfg:  cfg,
		m:    m,
		rgba: make([]byte, 160*144*4),
	}
}

// Run blocks until the window is closed or FatalError is invoked.
func (a *EbitenApp) Run() error { return ebiten.RunGame(a) }

// Framebuffer implements Frontend: Machine.StepFrame copies the completed
// frame's palette indices here.
func (a *EbitenApp) Framebuffer() []byte { return a.paletteBuf[:] }

// DrawDone implements Frontend. Drawing itself happens in Draw, which runs
// right after Update on ebiten's own schedule; nothing to do here besides
// the implicit "a new frame is ready" signal already carried by paletteBuf.
func (a *EbitenApp) DrawDone() {}

// FatalError implements Frontend. It records msg; the failing StepFrame's
// error is logged and returned from Update, which ends ebiten's run loop, and
// Run's caller sees that error.
func (a *EbitenApp) FatalError(msg string) {
	a.fatal = msg
}

func (a *EbitenApp) Update() error {
	if a.fatal != "" {
		return fmt.Errorf("gbcore: %s", a.fatal)
	}

	var mask byte
	if ebiten.IsKeyPressed(ebiten.KeyRight) {
		mask |= bus.JoypRight
	}
	if ebiten.IsKeyPressed(ebiten.KeyLeft) {
		mask |= bus.JoypLeft
	}
	if ebiten.IsKeyPressed(ebiten.KeyUp) {
		mask |= bus.JoypUp
	}
	if ebiten.IsKeyPressed(ebiten.KeyDown) {
		mask |= bus.JoypDown
	}
	if ebiten.IsKeyPressed(ebiten.KeyZ) {
		mask |= bus.JoypA
	}
	if ebiten.IsKeyPressed(ebiten.KeyX) {
		mask |= bus.JoypB
	}
	if ebiten.IsKeyPressed(ebiten.KeyEnter) {
		mask |= bus.JoypStart
	}
	if ebiten.IsKeyPressed(ebiten.KeyShiftRight) {
		mask |= bus.JoypSelectBtn
	}
	a.m.SetButtons(mask)

	if err := a.m.StepFrame(a); err != nil {
		log.Printf("gbcore: %v", err)
		return err
	}
	return nil
}

func (a *EbitenApp) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	for i, ci := range a.paletteBuf {
		shade := dmgShades[ci&0x03]
		a.rgba[i*4+0] = shade[0]
		a.rgba[i*4+1] = shade[1]
		a.rgba[i*4+2] = shade[2]
		a.rgba[i*4+3] = 0xFF
	}
	a.tex.WritePixels(a.rgba)
	screen.DrawImage(a.tex, nil)
}

func (a *EbitenApp) Layout(outsideWidth, outsideHeight int) (int, int) { return 160, 144 }
