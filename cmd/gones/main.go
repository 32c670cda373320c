package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/nesgo/nesgo/pkg/emulator"
	"github.com/nesgo/nesgo/pkg/gui"
	"github.com/nesgo/nesgo/pkg/logger"
)

func main() {
	var (
		logLevel   = flag.String("log-level", "info", "Log level (off, error, warn, info, debug, trace)")
		logFile    = flag.String("log-file", "", "Log file path (empty for stdout)")
		cpuLog     = flag.Bool("cpu-log", false, "Enable CPU instruction logging")
		ppuLog     = flag.Bool("ppu-log", false, "Enable PPU logging")
		apuLog     = flag.Bool("apu-log", false, "Enable APU logging")
		mapperLog  = flag.Bool("mapper-log", false, "Enable mapper logging")
		headless   = flag.Bool("headless", false, "Run in headless mode for testing")
		testFrames = flag.Int("test-frames", 600, "Number of frames to run in headless mode")
		sampleRate = flag.Float64("sample-rate", emulator.DefaultSampleRateHz, "Audio sample rate in Hz")
	)

	flag.Usage = func() {
		fmt.Printf("Usage: %s [options] <rom_file>\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println("\nControls:")
		fmt.Println("  Z - A button")
		fmt.Println("  X - B button")
		fmt.Println("  A - Select")
		fmt.Println("  S - Start")
		fmt.Println("  Arrow keys - D-pad")
		fmt.Println("  ESC - Quit")
	}

	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	romFile := flag.Arg(0)

	level := logger.GetLogLevelFromString(*logLevel)
	if err := logger.Initialize(level, *logFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.SetCPULogging(*cpuLog)
	logger.SetPPULogging(*ppuLog)
	logger.SetAPULogging(*apuLog)
	logger.SetMapperLogging(*mapperLog)

	logger.LogInfo("GoNES Emulator starting...")
	logger.LogInfo("Log level: %s", *logLevel)
	if *logFile != "" {
		logger.LogInfo("Logging to file: %s", *logFile)
	}

	if _, err := os.Stat(romFile); os.IsNotExist(err) {
		log.Fatalf("ROM file not found: %s", romFile)
	}

	cfg := emulator.DefaultConfig()
	cfg.SampleRateHz = *sampleRate

	emu := emulator.New(cfg)
	if err := emu.LoadCartridgeFile(romFile); err != nil {
		log.Fatalf("Failed to load ROM: %v", err)
	}
	defer emu.Close()

	logger.LogInfo("Loaded ROM: %s", filepath.Base(romFile))
	if emu.Cartridge.HasBattery() {
		logger.LogInfo("Battery-backed PRG RAM: %d KB", len(emu.Cartridge.PRGRAM)/1024)
	}
	if len(emu.Cartridge.CHRROM) > 0 {
		logger.LogInfo("CHR ROM: %d KB", len(emu.Cartridge.CHRROM)/1024)
	} else {
		logger.LogInfo("CHR RAM: %d KB", len(emu.Cartridge.CHRRAM)/1024)
	}

	if *headless {
		runHeadless(emu, *testFrames)
		return
	}

	logger.LogInfo("Creating GUI...")
	nesGUI, err := gui.NewNESGUI(emu)
	if err != nil {
		log.Fatalf("Failed to create GUI: %v", err)
	}
	defer nesGUI.Destroy()

	logger.LogInfo("Starting emulator...")
	nesGUI.Run()
	logger.LogInfo("Emulator stopped")
}

func runHeadless(emu *emulator.Emulator, maxFrames int) {
	logger.LogInfo("Starting headless mode for %d frames", maxFrames)

	startTime := time.Now()
	for frame := 0; frame < maxFrames; frame++ {
		if err := emu.RunFrame(); err != nil {
			logger.LogError("emulation halted at frame %d: %v", frame, err)
			break
		}
	}
	elapsed := time.Since(startTime)
	logger.LogInfo("Headless execution completed in %v", elapsed)

	analyzeFrameBuffer(emu.FramebufferRaw(), maxFrames-1)
}

func analyzeFrameBuffer(frameBuffer []uint32, frame int) {
	pixelCounts := make(map[uint32]int)
	totalPixels := len(frameBuffer)

	for _, pixel := range frameBuffer {
		pixelCounts[pixel]++
	}

	logger.LogInfo("Frame %d analysis:", frame)
	logger.LogInfo("  Total pixels: %d", totalPixels)
	logger.LogInfo("  Unique colors: %d", len(pixelCounts))

	for color, count := range pixelCounts {
		percentage := float64(count) / float64(totalPixels) * 100
		if percentage > 1.0 {
			logger.LogInfo("  Color 0x%08X: %d pixels (%.1f%%)", color, count, percentage)
		}
	}

	nonBgCount := 0
	for color, count := range pixelCounts {
		if color != 0xFF050505 {
			nonBgCount += count
		}
	}

	if nonBgCount > 0 {
		logger.LogInfo("  Non-background pixels: %d (%.1f%%)",
			nonBgCount, float64(nonBgCount)/float64(totalPixels)*100)
	} else {
		logger.LogInfo("  All pixels are background color")
	}
}
