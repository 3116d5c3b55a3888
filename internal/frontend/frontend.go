// Package frontend defines the contract emu.Machine uses to hand frames,
// completion signals, and fatal errors to whatever is presenting them.
package frontend

// Frontend is implemented by anything that owns a window, a headless buffer,
// or a test harness driving the core. emu.Machine never imports a concrete
// presentation layer; it only calls back through this interface.
type Frontend interface {
	// Framebuffer returns a mutable view of length 160*144 holding palette
	// indices 0..3, one per pixel, row-major starting at (0,0).
	Framebuffer() []byte

	// DrawDone is called once per completed frame, after the Machine has
	// finished writing into the buffer returned by Framebuffer.
	DrawDone()

	// FatalError is called when the Machine hits a fatal opcode fault. After
	// it returns, StepFrame stops stepping and returns the same error.
	// Unsupported cartridges are reported as an error from LoadCartridge
	// instead, and the Bus has no bus-fault path.
	FatalError(msg string)
}
