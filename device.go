package mt7927

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/openmt/mt7927/internal/pcibus"
	"github.com/openmt/mt7927/remap"
)

// Config configures a device session.
type Config struct {
	// Addr pins the session to a specific PCI address ("0000:01:00.0").
	// Empty means scan for the first MT7927 function.
	Addr string
	// SysfsRoot overrides the PCI sysfs directory. Empty means the live
	// system tree.
	SysfsRoot string
	Logger    *slog.Logger
}

// Device is one claimed MT7927 function with both BARs mapped. It owns
// the mappings exclusively: no caller may retain a Region past Close.
type Device struct {
	mu     sync.Mutex
	fn     *pcibus.Function
	mem    *MMIORegion // BAR0: bulk memory, command stream
	ctl    *MMIORegion // BAR2: control/status registers
	chipID uint32
	logger *slog.Logger
}

// Open enables the matching PCI function, claims its two memory
// resources exclusively and maps both. Either the returned Device holds
// both mappings or nothing is held: every early failure tears down
// whatever was acquired before returning.
func Open(cfg Config) (*Device, error) {
	root := cfg.SysfsRoot
	if root == "" {
		root = pcibus.DefaultRoot
	}
	var addr pcibus.Addr
	var err error
	if cfg.Addr == "" {
		addr, err = pcibus.Find(root, VendorID, DeviceID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
		}
	} else if addr, err = pcibus.ParseAddr(cfg.Addr); err != nil {
		return nil, err
	}

	fn, err := pcibus.Open(root, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	}
	d := &Device{fn: fn, logger: cfg.Logger}

	failed := true
	defer func() {
		if failed {
			d.Close()
		}
	}()

	if err := fn.Enable(); err != nil {
		return nil, err
	}
	if err := fn.EnableBusMaster(); err != nil {
		return nil, err
	}
	d.mem, err = d.mapRegion(0, "bar0", Bar0Size)
	if err != nil {
		return nil, err
	}
	d.ctl, err = d.mapRegion(2, "bar2", Bar2Size)
	if err != nil {
		return nil, err
	}

	d.readChipID()
	d.info("session open",
		slog.String("addr", addr.String()),
		slog.String("chip_id", hex32(d.chipID)),
		slog.Int("bar0_size", int(d.mem.Size())),
		slog.Int("bar2_size", int(d.ctl.Size())),
	)
	failed = false
	return d, nil
}

func (d *Device) mapRegion(index int, name string, wantSize uint32) (*MMIORegion, error) {
	res, err := d.fn.MapResource(index)
	if err != nil {
		if errors.Is(err, pcibus.ErrBusy) {
			return nil, fmt.Errorf("%w: %v", ErrResourceBusy, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMappingFailed, err)
	}
	if uint32(res.Size()) != wantSize {
		d.warn("unexpected region size",
			slog.String("region", name),
			slog.Int("got", res.Size()),
			slog.Int("want", int(wantSize)),
		)
	}
	return NewMMIORegion(name, res.Bytes())
}

// readChipID probes the hypothesized identity word. A mismatch is
// logged, not fatal; only the all-ones bus-error read is alarming.
func (d *Device) readChipID() {
	off := uint32(RegChipIDWord)
	if off >= d.ctl.Size() {
		off = RegChipStatus
	}
	d.chipID = d.ctl.Read32(off)
	if d.chipID == SentinelOnes {
		d.logerr("chip id reads all-ones, device may be wedged")
	} else if d.chipID != ChipID {
		d.warn("unexpected chip id", slog.String("got", hex32(d.chipID)))
	}
}

// Mem returns the BAR0 region. Valid until Close.
func (d *Device) Mem() Region { return d.mem }

// Ctl returns the BAR2 region. Valid until Close.
func (d *Device) Ctl() Region { return d.ctl }

// ChipID returns the identity word read at session open.
func (d *Device) ChipID() uint32 { return d.chipID }

// SelfTest exercises the verified scratch registers with the round-trip
// pattern set. It writes nothing else.
func (d *Device) SelfTest() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, off := range []uint32{RegScratch1, RegScratch2} {
		if err := ScratchRoundTrip(d.ctl, off); err != nil {
			return err
		}
	}
	d.debug("scratch self-test passed")
	return nil
}

// BringUp runs one sequencer attempt over the session's regions. The
// session mutex serializes attempts; the hardware has no notion of
// concurrent owners.
func (d *Device) BringUp(rv *remap.Resolver, cfg SequencerConfig) (*Report, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cfg.Logger == nil {
		cfg.Logger = d.logger
	}
	return NewSequencer(d.mem, d.ctl, rv, cfg).Run()
}

// Prelude runs the scripted wakeup sequence under the session mutex.
func (d *Device) Prelude(rv *remap.Resolver, cfg PreludeConfig) (LivenessSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cfg.Logger == nil {
		cfg.Logger = d.logger
	}
	return RunPrelude(d.mem, d.ctl, rv, cfg)
}

// Liveness takes one read-only snapshot of the indicators.
func (d *Device) Liveness() LivenessSnapshot {
	return CheckLiveness(d.mem, d.ctl)
}

// Close unmaps both regions in reverse order, releases the claims and
// disables the function. Idempotent; runs on every exit path of Open.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fn == nil {
		return nil
	}
	err := d.fn.Close()
	d.fn = nil
	d.mem = nil
	d.ctl = nil
	return err
}
