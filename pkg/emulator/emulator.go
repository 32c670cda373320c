// Package emulator composes the CPU, PPU, APU, memory bus, cartridge and
// standard controller into one console instance and drives the frame loop.
// It owns no emulation logic of its own beyond wiring and the top-level
// RunFrame/PowerOn/SoftReset/LoadCartridge entry points.
package emulator

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/nesgo/nesgo/pkg/apu"
	"github.com/nesgo/nesgo/pkg/bus"
	"github.com/nesgo/nesgo/pkg/cartridge"
	"github.com/nesgo/nesgo/pkg/controller"
	"github.com/nesgo/nesgo/pkg/cpu"
	"github.com/nesgo/nesgo/pkg/logger"
	"github.com/nesgo/nesgo/pkg/ppu"
)

// DefaultCPUClockHz is the NTSC 6502 clock rate; the only clock this core's
// tests exercise, per SPEC_FULL.md §3's EmulatorConfig note.
const DefaultCPUClockHz = 1789773.0

// DefaultSampleRateHz is the host audio sample rate used when a Config
// leaves SampleRateHz at zero.
const DefaultSampleRateHz = 44100.0

// Config is the ambient, non-core construction input for an Emulator: host
// sample rate, CPU clock override, and per-channel/master audio gain. None
// of it is part of the "hard core" in spec.md §2; it exists so the host
// doesn't have to poke package-level globals to configure playback.
type Config struct {
	CPUClockHz   float64
	SampleRateHz float64

	ChannelGains [5]float64
	ChannelMutes [5]bool
	MasterGain   float64
}

// DefaultConfig returns a Config with NTSC timing, 44.1kHz audio, and unity
// gain on every channel.
func DefaultConfig() Config {
	cfg := Config{
		CPUClockHz:   DefaultCPUClockHz,
		SampleRateHz: DefaultSampleRateHz,
		MasterGain:   1.0,
	}
	for i := range cfg.ChannelGains {
		cfg.ChannelGains[i] = 1.0
	}
	return cfg
}

// Emulator owns one instance of every core component plus the iNES
// cartridge currently loaded.
type Emulator struct {
	CPU         *cpu.CPU
	PPU         *ppu.PPU
	APU         *apu.APU
	Bus         *bus.Bus
	Controller1 *controller.Controller
	Controller2 *controller.Controller
	Cartridge   *cartridge.Cartridge

	config     Config
	batteryPath string
}

// New constructs an Emulator with every component wired together through
// the bus façade, but with no cartridge loaded yet — call LoadCartridge
// before RunFrame.
func New(cfg Config) *Emulator {
	if cfg.CPUClockHz == 0 {
		cfg.CPUClockHz = DefaultCPUClockHz
	}
	if cfg.SampleRateHz == 0 {
		cfg.SampleRateHz = DefaultSampleRateHz
	}

	e := &Emulator{config: cfg}
	e.PPU = ppu.New()
	e.APU = apu.New()
	e.APU.Configure(cfg.CPUClockHz, cfg.SampleRateHz)
	e.applyVolumeConfig()

	e.Controller1 = controller.New()
	e.Controller2 = controller.New()

	e.Bus = bus.New()
	e.Bus.SetPPU(e.PPU)
	e.Bus.SetAPU(e.APU)
	e.Bus.SetController(e.Controller1)

	onRead, onWrite, onPeek, onHalt := e.Bus.CPUCallbacks()
	e.CPU = cpu.New(cpu.Callbacks{
		OnRead:  onRead,
		OnWrite: onWrite,
		OnPeek:  onPeek,
		OnHalt:  onHalt,
	})
	e.Bus.SetCPU(e.CPU)

	return e
}

func (e *Emulator) applyVolumeConfig() {
	for ch := 0; ch < 5; ch++ {
		e.APU.SetChannelGain(ch, e.config.ChannelGains[ch])
		e.APU.SetChannelMute(ch, e.config.ChannelMutes[ch])
	}
	if e.config.MasterGain == 0 {
		e.config.MasterGain = 1.0
	}
	e.APU.SetMasterGain(e.config.MasterGain)
}

// SetChannelGain forwards to the APU's per-channel volume API.
func (e *Emulator) SetChannelGain(channel int, gain float64) { e.APU.SetChannelGain(channel, gain) }

// SetChannelMute forwards to the APU's per-channel volume API.
func (e *Emulator) SetChannelMute(channel int, muted bool) { e.APU.SetChannelMute(channel, muted) }

// SetMasterGain forwards to the APU's per-channel volume API.
func (e *Emulator) SetMasterGain(gain float64) { e.APU.SetMasterGain(gain) }

// LoadCartridge reads an iNES ROM from r, wires it to the bus and PPU, and
// powers the console on. The returned error is one of the taxonomy's
// "refuse power-on" kinds (invalid ROM format, unsupported mapper, missing
// PRG ROM) wrapped with github.com/pkg/errors so errors.Cause recovers the
// sentinel.
func (e *Emulator) LoadCartridge(r io.Reader) error {
	cart, err := cartridge.LoadFromReader(r)
	if err != nil {
		return errors.Wrap(err, "load cartridge")
	}
	e.Cartridge = cart
	e.Bus.SetCartridge(cart)
	e.PPU.SetCartridge(cart)
	e.PowerOn()
	return nil
}

// LoadCartridgeFile opens path and loads it via LoadCartridge, then loads a
// sibling ".sav" battery file if the cartridge is battery-backed. A missing
// save file is not an error; any other I/O failure degrades gracefully
// (logged, not propagated) per §7.
func (e *Emulator) LoadCartridgeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open ROM file")
	}
	defer f.Close()

	if err := e.LoadCartridge(f); err != nil {
		return err
	}

	e.batteryPath = batterySavePath(path)
	if err := e.Cartridge.LoadBatteryFile(e.batteryPath); err != nil {
		logger.LogError("battery load failed for %s: %v", e.batteryPath, err)
	}
	return nil
}

// Close saves the current cartridge's battery RAM, if any, to the sibling
// ".sav" path computed by LoadCartridgeFile. I/O failure here is logged,
// not returned, matching the graceful-degradation taxonomy entry in §7.
func (e *Emulator) Close() {
	if e.Cartridge == nil || e.batteryPath == "" {
		return
	}
	if err := e.Cartridge.SaveBatteryFile(e.batteryPath); err != nil {
		logger.LogError("battery save failed for %s: %v", e.batteryPath, err)
	}
}

func batterySavePath(romPath string) string {
	for i := len(romPath) - 1; i >= 0 && romPath[i] != '/'; i-- {
		if romPath[i] == '.' {
			return romPath[:i] + ".sav"
		}
	}
	return romPath + ".sav"
}

// PowerOn runs the full power-on sequence across every component. Loading
// a new cartridge always runs this; it is also exported for hosts that want
// to re-power an already-loaded cartridge (e.g. a "power cycle" menu item).
func (e *Emulator) PowerOn() {
	e.CPU.PowerOn()
	e.PPU.Reset()
	e.APU.Reset()
	e.APU.Configure(e.config.CPUClockHz, e.config.SampleRateHz)
	e.applyVolumeConfig()
}

// SoftReset runs the console's reset line: a partial re-initialization that
// leaves palette RAM, OAM and APU channel registers untouched on real
// hardware. Only the CPU and PPU are reset here; PPU.Reset clears just
// control/status/scroll-latch state (see pkg/ppu), and the APU keeps all
// of its state.
func (e *Emulator) SoftReset() {
	e.CPU.Reset()
	e.PPU.Reset()
}

// RunFrame executes CPU instructions until the PPU's frame counter
// increments, i.e. exactly one video frame's worth of CPU/PPU/APU
// activity. It returns the CPU's error if Step reports an unimplemented
// opcode — the one fatal condition in the error taxonomy — so the host can
// stop or report rather than silently hanging.
func (e *Emulator) RunFrame() error {
	startFrame := e.PPU.Frame
	for e.PPU.Frame == startFrame {
		if err := e.CPU.Step(); err != nil {
			return errors.Wrap(err, "cpu halted")
		}
	}
	return nil
}

// ReadMemory peeks the CPU address space without side effects, for tests
// and debug tooling that want to inspect RAM or PRG ROM contents.
func (e *Emulator) ReadMemory(addr uint16) uint8 {
	return e.Bus.Peek(addr)
}

// Framebuffer returns the current frame as RGBA bytes, 256x240 pixels.
func (e *Emulator) Framebuffer() []uint8 {
	return e.PPU.GetFramebuffer()
}

// FramebufferRaw returns the current frame as packed ARGB uint32 pixels,
// 256x240 of them, for hosts that want to inspect or dump raw color values.
func (e *Emulator) FramebufferRaw() []uint32 {
	return e.PPU.GetDisplayFrameBuffer()
}

// DrainAudio returns and clears the buffered mono 16-bit PCM samples
// produced since the last call, for a host audio callback to consume.
func (e *Emulator) DrainAudio() []int16 {
	return e.APU.DrainOutput()
}
