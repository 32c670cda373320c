package gui

import (
	"fmt"
	"os"
	"runtime"
	"time"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/nesgo/nesgo/pkg/controller"
	"github.com/nesgo/nesgo/pkg/emulator"
	"github.com/nesgo/nesgo/pkg/logger"
)

const (
	WindowWidth  = 256 * 3 // NES resolution 256x240 scaled 3x
	WindowHeight = 240 * 3
	WindowTitle  = "GoNES - Nintendo Entertainment System Emulator"

	// Audio constants
	AudioSampleRate = 44100
	AudioBufferSize = 1024 // Standard buffer size
	AudioChannels   = 1    // Mono

	// Timing constants
	TargetFPS = 60.0988 // NES actual framerate
)

var (
	// NTSC NES frame rate: 60.0988 FPS (more precisely: 1789773 / 29780.5 = 60.0988139...)
	// Frame time = 1,000,000,000 / 60.0988139 = 16,639,266.85 ns
	FrameTime = time.Duration(16639267) * time.Nanosecond // 16.639267ms per frame
)

// NESGUI represents the GUI for the NES emulator
type NESGUI struct {
	window        *sdl.Window
	renderer      *sdl.Renderer
	texture       *sdl.Texture
	emu           *emulator.Emulator
	running       bool
	screenshotNum int

	// Audio
	audioDevice sdl.AudioDeviceID
	audioSpec   *sdl.AudioSpec

	// Timing
	lastFrameTime time.Time
	nextFrameTime time.Time

	// FPS tracking
	fpsCounter int
	fpsTimer   time.Time
	currentFPS float64
	showFPS    bool
}

// NewNESGUI creates a new NES GUI wrapping an already-loaded Emulator.
func NewNESGUI(emu *emulator.Emulator) (*NESGUI, error) {
	// Lock main thread for SDL
	runtime.LockOSThread()

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO); err != nil {
		return nil, err
	}

	window, err := sdl.CreateWindow(
		WindowTitle,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		WindowWidth,
		WindowHeight,
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		sdl.Quit()
		return nil, err
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return nil, err
	}
	renderer.SetDrawBlendMode(sdl.BLENDMODE_NONE)

	// Texture for the PPU's 256x240 RGBA framebuffer.
	texture, err := renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		256,
		240,
	)
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		sdl.Quit()
		return nil, err
	}
	texture.SetBlendMode(sdl.BLENDMODE_NONE)

	gui := &NESGUI{
		window:        window,
		renderer:      renderer,
		texture:       texture,
		emu:           emu,
		running:       true,
		lastFrameTime: time.Now(),
		nextFrameTime: time.Now().Add(FrameTime),
		fpsTimer:      time.Now(),
		showFPS:       true,
	}

	if err := gui.initAudio(); err != nil {
		logger.LogError("Failed to initialize audio: %v", err)
		logger.LogError("Audio will be disabled. Check SDL2 audio drivers.")
	} else {
		logger.LogInfo("Audio initialization successful")
	}

	return gui, nil
}

// Destroy cleans up SDL resources
func (g *NESGUI) Destroy() {
	if g.audioDevice != 0 {
		sdl.CloseAudioDevice(g.audioDevice)
	}
	if g.texture != nil {
		g.texture.Destroy()
	}
	if g.renderer != nil {
		g.renderer.Destroy()
	}
	if g.window != nil {
		g.window.Destroy()
	}
	sdl.Quit()
}

// Run starts the main GUI loop
func (g *NESGUI) Run() {
	frameCount := 0
	startTime := time.Now()

	for g.running {
		g.handleEvents()
		if err := g.update(); err != nil {
			logger.LogError("emulation halted: %v", err)
			g.running = false
			break
		}
		g.render()

		// Pace to the target frame rate using total elapsed time, which
		// compensates for time.Sleep jitter better than a fixed per-frame
		// sleep would.
		frameCount++
		targetEndTime := startTime.Add(time.Duration(frameCount) * FrameTime)
		if now := time.Now(); now.Before(targetEndTime) {
			time.Sleep(targetEndTime.Sub(now))
		}

		g.lastFrameTime = time.Now()
	}
}

// handleEvents processes SDL events
func (g *NESGUI) handleEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			g.running = false
		case *sdl.KeyboardEvent:
			g.handleKeyboard(e)
		}
	}
}

// handleKeyboard maps keyboard input to controller 1's buttons.
func (g *NESGUI) handleKeyboard(event *sdl.KeyboardEvent) {
	pressed := event.State == sdl.PRESSED

	switch event.Keysym.Sym {
	case sdl.K_z:
		g.emu.Controller1.SetButton(controller.ButtonA, pressed)
	case sdl.K_x:
		g.emu.Controller1.SetButton(controller.ButtonB, pressed)
	case sdl.K_a:
		g.emu.Controller1.SetButton(controller.ButtonSelect, pressed)
	case sdl.K_s:
		g.emu.Controller1.SetButton(controller.ButtonStart, pressed)
	case sdl.K_UP:
		g.emu.Controller1.SetButton(controller.ButtonUp, pressed)
	case sdl.K_DOWN:
		g.emu.Controller1.SetButton(controller.ButtonDown, pressed)
	case sdl.K_LEFT:
		g.emu.Controller1.SetButton(controller.ButtonLeft, pressed)
	case sdl.K_RIGHT:
		g.emu.Controller1.SetButton(controller.ButtonRight, pressed)
	case sdl.K_ESCAPE:
		g.running = false
	case sdl.K_F12:
		if pressed {
			g.saveScreenshot()
		}
	case sdl.K_F3:
		if pressed {
			g.showFPS = !g.showFPS
		}
	}
}

// update runs the emulator for one frame and queues its audio output.
func (g *NESGUI) update() error {
	if err := g.emu.RunFrame(); err != nil {
		return err
	}
	g.queueAudio()
	g.updateFPS()
	return nil
}

// render draws the current frame to the screen
func (g *NESGUI) render() {
	framebuffer := g.emu.Framebuffer()
	if len(framebuffer) > 0 {
		g.texture.Update(nil, unsafe.Pointer(&framebuffer[0]), 256*4)
	}

	g.renderer.SetDrawColor(0, 0, 0, 255)
	g.renderer.Clear()
	g.renderer.Copy(g.texture, nil, nil)

	if g.showFPS {
		g.updateWindowTitle()
	}

	g.renderer.Present()
}

// saveScreenshot saves the current screen to a file
func (g *NESGUI) saveScreenshot() {
	filename := fmt.Sprintf("screenshot_%03d.raw", g.screenshotNum)
	g.screenshotNum++
	g.saveScreenshotWithName(filename)
}

func (g *NESGUI) saveFramebufferAsRaw(filename string, data []uint8) {
	file, err := os.Create(filename)
	if err != nil {
		logger.LogError("Failed to create file %s: %v", filename, err)
		return
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		logger.LogError("Failed to write to file %s: %v", filename, err)
		return
	}

	logger.LogInfo("Raw framebuffer saved: %s (%d bytes)", filename, len(data))
}

// saveScreenshotWithName saves the current screen with a specific filename
func (g *NESGUI) saveScreenshotWithName(filename string) {
	w, h, _ := g.renderer.GetOutputSize()
	pixels := make([]byte, w*h*4)
	err := g.renderer.ReadPixels(nil, sdl.PIXELFORMAT_RGBA8888, unsafe.Pointer(&pixels[0]), int(w*4))
	if err != nil {
		logger.LogError("Failed to read pixels: %v", err)
		return
	}
	g.saveFramebufferAsRaw(filename, pixels)
}

// initAudio initializes the SDL audio device. The APU already emits
// int16 PCM, so the device is opened for signed 16-bit audio directly
// instead of converting through float.
func (g *NESGUI) initAudio() error {
	want := &sdl.AudioSpec{
		Freq:     AudioSampleRate,
		Format:   sdl.AUDIO_S16LSB,
		Channels: AudioChannels,
		Samples:  AudioBufferSize,
	}

	var have sdl.AudioSpec
	device, err := sdl.OpenAudioDevice("", false, want, &have, sdl.AUDIO_ALLOW_ANY_CHANGE)
	if err != nil {
		return fmt.Errorf("failed to open audio device: %v", err)
	}

	g.audioDevice = device
	g.audioSpec = &have

	logger.LogInfo("Audio initialized: %dHz, %d channels, format 0x%x, buffer size %d",
		have.Freq, have.Channels, have.Format, have.Samples)
	if have.Freq != AudioSampleRate {
		logger.LogInfo("WARNING: Requested %d Hz but got %d Hz - audio pitch will be wrong!",
			AudioSampleRate, have.Freq)
	}

	sdl.PauseAudioDevice(device, false)
	return nil
}

// queueAudio drains the APU's pending samples and queues them to SDL,
// dropping the batch if the device already has more than two buffers
// queued rather than growing unbounded latency.
func (g *NESGUI) queueAudio() {
	if g.audioDevice == 0 {
		return
	}

	samples := g.emu.DrainAudio()
	if len(samples) == 0 {
		return
	}

	queuedBytes := sdl.GetQueuedAudioSize(g.audioDevice)
	maxBytes := uint32(AudioBufferSize * 2 * 2) // 2 buffers worth of 16-bit samples

	if queuedBytes >= maxBytes {
		return
	}

	audioData := make([]byte, len(samples)*2)
	for i, sample := range samples {
		audioData[i*2+0] = byte(sample)
		audioData[i*2+1] = byte(sample >> 8)
	}
	sdl.QueueAudio(g.audioDevice, audioData)
}

// updateFPS calculates the current FPS
func (g *NESGUI) updateFPS() {
	g.fpsCounter++

	elapsed := time.Since(g.fpsTimer)
	if elapsed >= 500*time.Millisecond {
		g.currentFPS = float64(g.fpsCounter) / elapsed.Seconds()
		g.fpsCounter = 0
		g.fpsTimer = time.Now()
	}
}

// updateWindowTitle updates the window title with FPS information
func (g *NESGUI) updateWindowTitle() {
	title := fmt.Sprintf("%s - FPS: %.1f", WindowTitle, g.currentFPS)
	g.window.SetTitle(title)
}
