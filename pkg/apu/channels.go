package apu

// PulseChannel is one of the two square-wave channels.
type PulseChannel struct {
	Enabled    bool
	DutyCycle  uint8
	Volume     uint8
	Sweep      SweepUnit
	Length     LengthCounter
	Envelope   EnvelopeGenerator
	TimerValue uint16
	timer      uint16
	sequence   uint8
}

// TriangleChannel is the triangle-wave channel.
type TriangleChannel struct {
	Enabled       bool
	Length        LengthCounter
	TimerValue    uint16
	timer         uint16
	sequence      uint8
	linearCounter uint8
	linearReload  uint8
	linearControl bool
}

// NoiseChannel is the pseudo-random noise channel.
type NoiseChannel struct {
	Enabled    bool
	Volume     uint8
	Length     LengthCounter
	Envelope   EnvelopeGenerator
	TimerValue uint16
	timer      uint16
	shiftReg   uint16
	mode       bool
}

// DMCChannel is the delta-modulation sample-playback channel.
type DMCChannel struct {
	enabled       bool
	irqEnable     bool
	loop          bool
	rate          uint8
	timer         uint16
	sampleAddr    uint16
	sampleLength  uint16
	currentAddr   uint16
	bytesRemaining uint16
	sampleBuffer  uint8
	bufferFull    bool
	shiftReg      uint8
	bitsRemaining uint8
	outputLevel   uint8
	silence       bool
	irqLatch      bool
}

// SweepUnit periodically nudges a pulse channel's period up or down.
type SweepUnit struct {
	Enabled bool
	Period  uint8
	Negate  bool
	Shift   uint8
	Reload  bool
	counter uint8
}

// LengthCounter silences a channel when it decrements to zero.
type LengthCounter struct {
	Enabled bool
	Value   uint8
	Halt    bool
}

// EnvelopeGenerator produces a constant or decaying volume.
type EnvelopeGenerator struct {
	Start    bool
	Loop     bool
	Constant bool
	Volume   uint8
	decay    uint8
	divider  uint8
}

var lengthTable = [32]uint8{
	10, 254, 20, 2, 40, 4, 80, 6, 160, 8, 60, 10, 14, 12, 26, 14,
	12, 16, 24, 18, 48, 20, 96, 22, 192, 24, 72, 26, 16, 28, 32, 30,
}

var dutyCycles = [4][8]uint8{
	{0, 1, 0, 0, 0, 0, 0, 0},
	{0, 1, 1, 0, 0, 0, 0, 0},
	{0, 1, 1, 1, 1, 0, 0, 0},
	{1, 0, 0, 1, 1, 1, 1, 1},
}

var triangleSequence = [32]uint8{
	15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

// noisePeriods is the NTSC noise-channel period table; a PAL console uses a
// different table, not exercised here since only NTSC timing is tested.
var noisePeriods = [16]uint16{
	4, 8, 16, 32, 64, 96, 128, 160, 202, 254, 380, 508, 762, 1016, 2034, 4068,
}

var dmcRates = [16]uint16{
	428, 380, 340, 320, 286, 254, 226, 214, 190, 160, 142, 128, 106, 84, 72, 54,
}

// stepPulseTimer advances one pulse channel's timer by one APU cycle (every
// other CPU cycle); on wrap it reloads from the period and advances the
// duty-sequence pointer backwards, as the original hardware does.
func (a *APU) stepPulseTimer(p *PulseChannel) {
	if p.timer == 0 {
		p.timer = p.TimerValue
		p.sequence = (p.sequence - 1) & 0x07
	} else {
		p.timer--
	}
}

func (a *APU) stepTriangleTimer() {
	t := &a.Triangle
	if t.timer == 0 {
		t.timer = t.TimerValue
		if t.Length.Value > 0 && t.linearCounter > 0 {
			t.sequence = (t.sequence + 1) % 32
		}
	} else {
		t.timer--
	}
}

func (a *APU) stepNoiseTimer() {
	n := &a.Noise
	if n.timer == 0 {
		n.timer = n.TimerValue
		var tapBit uint16
		if n.mode {
			tapBit = (n.shiftReg >> 6) & 1
		} else {
			tapBit = (n.shiftReg >> 1) & 1
		}
		feedback := (n.shiftReg & 1) ^ tapBit
		n.shiftReg = (n.shiftReg >> 1) | (feedback << 14)
		if n.shiftReg == 0 {
			n.shiftReg = 1
		}
	} else {
		n.timer--
	}
}

// stepDMCTimer advances the DMC channel's output-level generator by one CPU
// cycle; every 8 output cycles it refills its 1-byte shift register from
// the sample buffer (requesting a DMA fetch via DMCRequest when empty).
func (a *APU) stepDMCTimer() {
	d := &a.DMC
	if !d.enabled {
		return
	}
	if d.timer > 0 {
		d.timer--
		return
	}
	d.timer = dmcRates[d.rate&0x0F]

	if d.bitsRemaining == 0 {
		d.bitsRemaining = 8
		if d.bufferFull {
			d.shiftReg = d.sampleBuffer
			d.bufferFull = false
			d.silence = false
		} else {
			d.silence = true
		}
	}

	if !d.silence {
		if d.shiftReg&1 != 0 {
			if d.outputLevel <= 125 {
				d.outputLevel += 2
			}
		} else {
			if d.outputLevel >= 2 {
				d.outputLevel -= 2
			}
		}
	}
	d.shiftReg >>= 1
	d.bitsRemaining--
}

func (a *APU) stepEnvelope(env *EnvelopeGenerator) {
	if env.Start {
		env.Start = false
		env.decay = 15
		env.divider = env.Volume
		return
	}
	if env.divider > 0 {
		env.divider--
		return
	}
	env.divider = env.Volume
	if env.decay > 0 {
		env.decay--
	} else if env.Loop {
		env.decay = 15
	}
}

func (a *APU) stepLinearCounter() {
	t := &a.Triangle
	if t.linearControl {
		t.linearCounter = t.linearReload
	} else if t.linearCounter > 0 {
		t.linearCounter--
	}
	if !t.Length.Halt {
		t.linearControl = false
	}
}

func (a *APU) stepLengthCounter(lc *LengthCounter) {
	if lc.Enabled && !lc.Halt && lc.Value > 0 {
		lc.Value--
	}
}

func (a *APU) stepSweep(pulse *PulseChannel, sweep *SweepUnit, channelOne bool) {
	target, muting := a.sweepTarget(pulse, sweep, channelOne)
	if sweep.counter == 0 && sweep.Enabled && sweep.Shift > 0 && !muting {
		pulse.TimerValue = target
	}
	if sweep.counter == 0 || sweep.Reload {
		sweep.counter = sweep.Period
		sweep.Reload = false
	} else {
		sweep.counter--
	}
}

// sweepTarget computes the sweep unit's target period. Channel one (pulse
// 1) negates with one's complement (−c−1); channel two negates with two's
// complement (−c), which is why an identical sweep setting produces a
// subtly different target period on each pulse channel.
func (a *APU) sweepTarget(pulse *PulseChannel, sweep *SweepUnit, channelOne bool) (target uint16, muting bool) {
	change := pulse.TimerValue >> sweep.Shift
	var t int32
	if sweep.Negate {
		if channelOne {
			t = int32(pulse.TimerValue) - int32(change) - 1
		} else {
			t = int32(pulse.TimerValue) - int32(change)
		}
		if t < 0 {
			t = 0
		}
	} else {
		t = int32(pulse.TimerValue) + int32(change)
	}
	target = uint16(t)
	muting = pulse.TimerValue < 8 || target > 0x7FF
	return target, muting
}

func (a *APU) pulseOutput(p *PulseChannel) uint8 {
	if !p.Enabled || p.Length.Value == 0 {
		return 0
	}
	if dutyCycles[p.DutyCycle][p.sequence] == 0 {
		return 0
	}
	if _, muting := a.sweepTarget(p, &p.Sweep, false); muting {
		return 0
	}
	if p.Envelope.Constant {
		return p.Volume
	}
	return p.Envelope.decay
}

func (a *APU) triangleOutput() uint8 {
	t := &a.Triangle
	if t.Length.Value == 0 || t.linearCounter == 0 || t.TimerValue < 2 {
		return 0
	}
	return triangleSequence[t.sequence]
}

func (a *APU) noiseOutput() uint8 {
	n := &a.Noise
	if n.Length.Value == 0 || n.shiftReg&1 != 0 {
		return 0
	}
	if n.Envelope.Constant {
		return n.Volume
	}
	return n.Envelope.decay
}

// mixChannels implements the non-linear mixing formula from §4.3 and
// converts the result to 16-bit signed PCM.
func (a *APU) mixChannels() int16 {
	p1 := float64(a.pulseOutput(&a.Pulse1)) * a.effectiveGain(ChannelPulse1)
	p2 := float64(a.pulseOutput(&a.Pulse2)) * a.effectiveGain(ChannelPulse2)
	t := float64(a.triangleOutput()) * a.effectiveGain(ChannelTriangle)
	n := float64(a.noiseOutput()) * a.effectiveGain(ChannelNoise)
	d := float64(a.DMC.outputLevel) * a.effectiveGain(ChannelDMC)

	var pulseOut float64
	if p1+p2 > 0 {
		pulseOut = 95.88 / (8128.0/(p1+p2) + 100.0)
	}

	var tndOut float64
	tndRecip := t/8227.0 + n/12241.0 + d/22638.0
	if tndRecip > 0 {
		tndOut = 159.79 / (1.0/tndRecip + 100.0)
	}

	sample := (pulseOut + tndOut) * a.masterGain
	if sample > 1.0 {
		sample = 1.0
	} else if sample < 0 {
		sample = 0
	}
	return int16((sample*2.0 - 1.0) * 32767.0)
}

func (a *APU) effectiveGain(channel int) float64 {
	if a.mute[channel] {
		return 0
	}
	return a.gain[channel]
}
