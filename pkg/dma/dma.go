// Package dma implements the console's OAM and DMC DMA controller: the
// half of the memory bus that halts the CPU and steals its bus cycles to
// move bytes without CPU instruction involvement.
package dma

import "github.com/nesgo/nesgo/pkg/logger"

// Controller tracks a pending OAM or DMC transfer. It has no reference to
// the CPU, APU, or bus: Process is handed everything it needs as
// arguments, the same callback-based shape the CPU itself uses.
type Controller struct {
	oamPending bool
	oamPage    uint8

	dmcPending bool
	dmcAddr    uint16
}

// New returns an idle DMA controller.
func New() *Controller {
	return &Controller{}
}

// ScheduleOAM arms a 256-byte OAM transfer from page*$100 and asks the
// caller to halt the CPU via scheduleHalt (normally CPU.ScheduleHalt).
// Writing $4014 is what triggers this.
func (d *Controller) ScheduleOAM(page uint8, scheduleHalt func()) {
	d.oamPending = true
	d.oamPage = page
	scheduleHalt()
}

// ScheduleDMC arms a single-byte DMC sample fetch from addr and asks the
// caller to halt the CPU via scheduleHalt. The bus calls this when the
// APU's DMCRequest reports that the DMC channel's sample buffer has run dry
// and it needs a new byte from PRG space.
func (d *Controller) ScheduleDMC(addr uint16, scheduleHalt func()) {
	d.dmcPending = true
	d.dmcAddr = addr
	scheduleHalt()
}

// Pending reports whether a transfer is currently armed.
func (d *Controller) Pending() bool {
	return d.oamPending || d.dmcPending
}

// Process runs the halt-and-drain sequence for whatever is currently
// armed. It is invoked from the CPU's OnHalt callback, with readByte/
// writeByte bound to the bus's raw CPU-side access functions so every byte
// this moves is itself a normal, cycle-counted CPU access — DMA steals
// cycles, it doesn't get free ones.
//
// apuCycleIsPut reports whether the APU's current cycle is the second half
// of an APU clock ("put"); dummyReadAddr is the address the halted CPU was
// about to access next, which is what the alignment/halt cycles dummy-read
// per hardware behavior. deliverDMCByte receives the byte fetched for a
// DMC transfer.
func (d *Controller) Process(
	readByte func(addr uint16) uint8,
	writeByte func(addr uint16, val uint8),
	deliverDMCByte func(val uint8),
	apuCycleIsPut bool,
	dummyReadAddr uint16,
) {
	readByte(dummyReadAddr) // halt cycle

	if d.dmcPending {
		readByte(dummyReadAddr) // DMC DMA always costs one more dummy cycle
	}
	if apuCycleIsPut {
		readByte(dummyReadAddr) // align so the transfer starts on a get cycle
	}

	switch {
	case d.oamPending:
		base := uint16(d.oamPage) << 8
		logger.LogDMA("OAM transfer from page $%02X", d.oamPage)
		for i := 0; i < 256; i++ {
			data := readByte(base + uint16(i))
			writeByte(0x2004, data)
		}
	case d.dmcPending:
		logger.LogDMA("DMC sample fetch at $%04X", d.dmcAddr)
		deliverDMCByte(readByte(d.dmcAddr))
	}

	d.oamPending = false
	d.dmcPending = false
}
