// Package timer implements the DIV/TIMA/TMA/TAC registers.
package timer

// Timer accumulates T-cycles and increments DIV/TIMA at fixed rates. DIV
// increments every 256 T-cycles. TIMA increments at a rate selected by TAC
// bits 1:0 while TAC bit 2 is set, and reloads from TMA on overflow.
type Timer struct {
	div  byte
	tima byte
	tma  byte
	tac  byte

	divAcc  int
	timaAcc int

	// RequestInterrupt is called with IF bit 2 set when TIMA overflows.
	RequestInterrupt func()
}

// New constructs a Timer that calls requestIRQ on TIMA overflow.
func New(requestIRQ func()) *Timer {
	return &Timer{RequestInterrupt: requestIRQ}
}

const divPeriod = 256

var timaPeriods = [4]int{1024, 16, 64, 256}

// Tick advances the timer by the given number of T-cycles.
func (t *Timer) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		t.divAcc++
		if t.divAcc >= divPeriod {
			t.divAcc -= divPeriod
			t.div++
		}

		if t.tac&0x04 == 0 {
			continue
		}
		period := timaPeriods[t.tac&0x03]
		t.timaAcc++
		if t.timaAcc >= period {
			t.timaAcc -= period
			t.stepTIMA()
		}
	}
}

func (t *Timer) stepTIMA() {
	if t.tima == 0xFF {
		t.tima = t.tma
		if t.RequestInterrupt != nil {
			t.RequestInterrupt()
		}
		return
	}
	t.tima++
}

func (t *Timer) ReadDIV() byte  { return t.div }
func (t *Timer) ReadTIMA() byte { return t.tima }
func (t *Timer) ReadTMA() byte  { return t.tma }
func (t *Timer) ReadTAC() byte  { return 0xF8 | (t.tac & 0x07) }

// WriteDIV resets the divider and its sub-cycle accumulator to 0.
func (t *Timer) WriteDIV(byte) {
	t.div = 0
	t.divAcc = 0
}

func (t *Timer) WriteTIMA(v byte) { t.tima = v }
func (t *Timer) WriteTMA(v byte)  { t.tma = v }

// WriteTAC stores the low 3 bits; a change in selected rate does not reset
// the running TIMA accumulator (no edge-detection model, see SPEC_FULL §4.4).
func (t *Timer) WriteTAC(v byte) { t.tac = v & 0x07 }

// State is the gob-serializable snapshot used by save states.
type State struct {
	Div, Tima, Tma, Tac byte
	DivAcc, TimaAcc     int
}

func (t *Timer) SaveState() State {
	return State{t.div, t.tima, t.tma, t.tac, t.divAcc, t.timaAcc}
}

func (t *Timer) LoadState(s State) {
	t.div, t.tima, t.tma, t.tac = s.Div, s.Tima, s.Tma, s.Tac
	t.divAcc, t.timaAcc = s.DivAcc, s.TimaAcc
}
