package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nesgo/nesgo/pkg/cartridge/mapper"
	"github.com/nesgo/nesgo/pkg/emulator"
	"github.com/nesgo/nesgo/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: headless_debug <rom_file> [frames]")
		os.Exit(1)
	}

	romFile := os.Args[1]
	maxFrames := 10
	if len(os.Args) >= 3 {
		fmt.Sscanf(os.Args[2], "%d", &maxFrames)
	}

	if err := logger.Initialize(logger.LogLevelDebug, ""); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	emu := emulator.New(emulator.DefaultConfig())
	if err := emu.LoadCartridgeFile(romFile); err != nil {
		log.Fatalf("Failed to load ROM: %v", err)
	}
	defer emu.Close()

	mapperNumber := (emu.Cartridge.Header.Flags6 >> 4) | (emu.Cartridge.Header.Flags7 & 0xF0)
	logger.LogInfo("=== Headless Debug Mode ===")
	logger.LogInfo("ROM: %s", romFile)
	logger.LogInfo("Mapper: %d", mapperNumber)
	logger.LogInfo("Max frames to run: %d", maxFrames)

	logger.LogInfo("=== Initial State ===")
	logger.LogInfo("Frame: %d", emu.PPU.Frame)

	if mapperNumber == 4 {
		printMapper4State(emu.Cartridge.Mapper, 0)
	}

	logger.LogInfo("=== Starting Emulation ===")
	startTime := time.Now()

	for i := 0; i < maxFrames; i++ {
		frameStart := time.Now()

		if err := emu.RunFrame(); err != nil {
			logger.LogError("emulation halted at frame %d: %v", i, err)
			break
		}

		frameTime := time.Since(frameStart)
		logger.LogInfo("Frame %d completed in %v", emu.PPU.Frame, frameTime)

		if i == 0 {
			printPPUState(emu)
		}

		if mapperNumber == 4 && (i+1)%3 == 0 {
			printMapper4State(emu.Cartridge.Mapper, emu.PPU.Frame)
		}

		framebuffer := emu.Framebuffer()
		nonZeroPixels := 0
		for j := 0; j < len(framebuffer); j++ {
			if framebuffer[j] != 0 {
				nonZeroPixels++
			}
		}
		logger.LogInfo("  Non-zero bytes in RGBA framebuffer: %d", nonZeroPixels)

		if i == maxFrames-1 {
			logger.LogInfo("  Saving final framebuffer...")
			saveFramebuffer(framebuffer, fmt.Sprintf("debug_frame_%d.raw", emu.PPU.Frame))
		}
	}

	totalTime := time.Since(startTime)
	logger.LogInfo("=== Final Results ===")
	logger.LogInfo("Completed %d frames in %v", emu.PPU.Frame, totalTime)
	logger.LogInfo("Average frame time: %v", totalTime/time.Duration(maxFrames))

	if mapperNumber == 4 {
		logger.LogInfo("=== Final Mapper 4 State ===")
		printMapper4State(emu.Cartridge.Mapper, emu.PPU.Frame)
	}
}

func printMapper4State(m mapper.Mapper, frame uint64) {
	mapper4, ok := m.(*mapper.Mapper4)
	if !ok {
		return
	}
	logger.LogInfo("--- Mapper 4 State (Frame %d) ---", frame)
	banks := mapper4.GetCurrentPRGBanks()
	logger.LogInfo("  PRG Banks: [%d, %d, %d, %d] ($8000, $A000, $C000, $E000)",
		banks[0], banks[1], banks[2], banks[3])

	debugInfo := mapper4.GetDebugInfo()
	logger.LogInfo("  Bank Select: 0x%02X", debugInfo["bankSelect"])
	bankRegs := debugInfo["bankRegisters"].([8]uint8)
	logger.LogInfo("  Bank Registers: [R0=%d, R1=%d, R2=%d, R3=%d, R4=%d, R5=%d, R6=%d, R7=%d]",
		bankRegs[0], bankRegs[1], bankRegs[2], bankRegs[3],
		bankRegs[4], bankRegs[5], bankRegs[6], bankRegs[7])
	logger.LogInfo("  PRG Mode: %d, CHR Mode: %d", debugInfo["prgMode"], debugInfo["chrMode"])
	logger.LogInfo("  Mirroring: %d (0=Vertical, 1=Horizontal)", debugInfo["mirroringMode"])
	logger.LogInfo("  PRG RAM Protect: 0x%02X", debugInfo["prgRAMProtect"])
	logger.LogInfo("  IRQ: Counter=%d, Reload=%d, Enabled=%v, Pending=%v",
		debugInfo["irqCounter"], debugInfo["irqReloadValue"],
		debugInfo["irqEnabled"], debugInfo["irqPending"])
	logger.LogInfo("  Bank Counts: PRG=%d (8KB), CHR=%d (1KB)",
		debugInfo["prgBankCount"], debugInfo["chrBankCount"])
}

func printPPUState(emu *emulator.Emulator) {
	p := emu.PPU
	logger.LogInfo("  PPU State:")
	logger.LogInfo("    Frame: %d, Scanline: %d, Cycle: %d", p.Frame, p.Scanline, p.Cycle)
	logger.LogInfo("    PPUCTRL: 0x%02X, PPUMASK: 0x%02X, PPUSTATUS: 0x%02X",
		p.PPUCTRL, p.PPUMASK, p.PPUSTATUS)

	bgEnabled := p.PPUMASK&0x08 != 0
	spriteEnabled := p.PPUMASK&0x10 != 0
	logger.LogInfo("    Rendering: BG=%v, Sprites=%v", bgEnabled, spriteEnabled)

	nmiEnabled := p.PPUCTRL&0x80 != 0
	logger.LogInfo("    NMI Enabled: %v, NMI Active: %v", nmiEnabled, p.NMIActive())
}

func saveFramebuffer(framebuffer []uint8, filename string) {
	file, err := os.Create(filename)
	if err != nil {
		logger.LogError("Error creating framebuffer file: %v", err)
		return
	}
	defer file.Close()

	if _, err := file.Write(framebuffer); err != nil {
		logger.LogError("Error writing framebuffer: %v", err)
		return
	}

	logger.LogInfo("  Framebuffer saved to %s (%d bytes)", filename, len(framebuffer))
}
