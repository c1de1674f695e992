// Package mt7927 implements a bring-up probe framework for the MediaTek
// MT7927 PCIe WiFi chipset. The chip is undocumented; this package does
// not implement a driver but the machinery needed to attach to the
// device safely, decode the proprietary configuration command stream
// found in its first memory window, and drive the chip through candidate
// initialization sequences while watching for the terminal all-ones
// error state.
//
// All register offsets below outside the scratch and mode registers are
// hypotheses derived from probing and from MT7925 material. Treat them
// as inputs to the mapping resolver, not as a verified register map.
package mt7927

import "errors"

// PCI identity of the MT7927 function.
const (
	VendorID = 0x14c3
	DeviceID = 0x7927

	// ChipID is the identity word observed on healthy silicon.
	ChipID = 0x792714c3
)

// BAR geometry. BAR0 carries bulk memory and the configuration stream,
// BAR2 carries control and status registers.
const (
	Bar0Size = 2 << 20
	Bar2Size = 32 << 10
)

// BAR0 landmarks.
const (
	// PrimaryIndicatorOffset is the "main memory" word. It reads as the
	// zero sentinel until bring-up succeeds.
	PrimaryIndicatorOffset = 0x000000
	// DMAWindowOffset is the secondary liveness indicator.
	DMAWindowOffset = 0x020000
	// ConfigStreamOffset is where the tagged command stream starts.
	ConfigStreamOffset = 0x080000
	// FirmwareRegionOffset holds firmware-looking data.
	FirmwareRegionOffset = 0x0c0000
)

// BAR2 control registers.
const (
	RegChipStatus  = 0x0000 // all-ones here means the chip is wedged
	RegFWReg1      = 0x0008
	RegFWReg2      = 0x000c
	RegScratch1    = 0x0020 // verified safe for read/write round-trips
	RegScratch2    = 0x0024 // verified safe for read/write round-trips
	RegMode1       = 0x0070
	RegMode2       = 0x0074
	RegFWStatus    = 0x0200
	RegDMAEnable   = 0x0204
	RegWPDMAGloCfg = 0x0208
	RegWPDMARstIdx = 0x020c
	RegChipIDWord  = 0x1008 // MT7925-style chip id location, unconfirmed
	RegMCUCmd      = 0x2000
	RegMCUResp     = 0x2004
)

// FWStatusIdle is what RegFWStatus reads before any firmware activity.
const FWStatusIdle = 0xffff10f1

// Sentinel words. Neither is ever valid data on this chip: all-zero is
// uninitialized memory, all-ones is a bus error or a wedged chip.
const (
	SentinelZero = 0x00000000
	SentinelOnes = 0xffffffff
)

// IsSentinel reports whether v is one of the two invalid-data sentinels.
func IsSentinel(v uint32) bool {
	return v == SentinelZero || v == SentinelOnes
}

// DangerZones returns the BAR2 offsets that destabilize the chip when
// written, found empirically. They must never be the target of a write,
// whatever a mapping strategy claims.
func DangerZones() []uint32 {
	return []uint32{0x00a4, 0x00b8, 0x00cc, 0x00dc}
}

var (
	// ErrDeviceNotFound is returned when no PCI function matches the
	// MT7927 identity.
	ErrDeviceNotFound = errors.New("no MT7927 function found")
	// ErrResourceBusy is returned when another owner holds the device's
	// resource regions. The attempt is over; there is no retry.
	ErrResourceBusy = errors.New("device regions held by another owner")
	// ErrMappingFailed is returned when a BAR fails to map.
	ErrMappingFailed = errors.New("failed mapping device region")
	// ErrChipWedged means the chip status register reads all-ones. Only
	// a physical bus rescan recovers the device; software cannot.
	ErrChipWedged = errors.New("chip wedged (status reads all-ones), physical bus rescan required")
)
