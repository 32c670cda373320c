package cartridge

import "github.com/pkg/errors"

// Sentinel errors for the cartridge error taxonomy: invalid ROM format,
// unsupported mapper, and missing required ROM region all refuse power-on
// rather than limping along with zeroed memory. Battery I/O failures are
// the one case that degrades gracefully instead (see LoadBattery/
// SaveBattery).
var (
	ErrInvalidROMFormat  = errors.New("invalid iNES ROM format")
	ErrMissingPRGROM     = errors.New("ROM header declares zero PRG ROM banks")
	ErrBatteryIO         = errors.New("battery-backed save I/O failed")
)
