// Package pcibus opens PCI functions through the Linux sysfs interface:
// enumeration under /sys/bus/pci/devices, enable and bus-master control
// through the per-device files, and BAR access by mmapping resourceN.
// The root directory is a parameter everywhere so tests can point the
// package at a synthetic tree.
package pcibus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// DefaultRoot is the live sysfs PCI device directory.
const DefaultRoot = "/sys/bus/pci/devices"

var (
	// ErrBusy means another owner holds the resource claim.
	ErrBusy = errors.New("pcibus: resource busy")
	// ErrNotFound means no function matched the wanted identity.
	ErrNotFound = errors.New("pcibus: no matching function")
)

// Addr is a PCI function address (domain:bus:slot.fn).
type Addr struct {
	Domain uint16
	Bus    uint8
	Slot   uint8
	Fn     uint8
}

func (a Addr) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%x", a.Domain, a.Bus, a.Slot, a.Fn)
}

// ParseAddr parses "0000:01:00.0" style addresses.
func ParseAddr(s string) (Addr, error) {
	var a Addr
	n, err := fmt.Sscanf(s, "%04x:%02x:%02x.%x", &a.Domain, &a.Bus, &a.Slot, &a.Fn)
	if err != nil || n != 4 {
		return Addr{}, fmt.Errorf("pcibus: bad address %q", s)
	}
	return a, nil
}

// Find scans root for the first function matching vendor:device.
func Find(root string, vendor, device uint16) (Addr, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return Addr{}, fmt.Errorf("pcibus: read %s: %w", root, err)
	}
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		v, err := readHexFile(filepath.Join(dir, "vendor"))
		if err != nil {
			continue
		}
		d, err := readHexFile(filepath.Join(dir, "device"))
		if err != nil {
			continue
		}
		if uint16(v) != vendor || uint16(d) != device {
			continue
		}
		addr, err := ParseAddr(e.Name())
		if err != nil {
			continue
		}
		return addr, nil
	}
	return Addr{}, fmt.Errorf("%w: %04x:%04x under %s", ErrNotFound, vendor, device, root)
}

func readHexFile(path string) (uint64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(b))
	s = strings.TrimPrefix(s, "0x")
	return strconv.ParseUint(s, 16, 32)
}

// Function is one opened PCI function. Resources claimed through it are
// released by Close in reverse mapping order.
type Function struct {
	addr      Addr
	dir       string
	enabled   bool
	resources []*Resource
}

// Open binds to the function directory. It does not enable the device.
func Open(root string, addr Addr) (*Function, error) {
	dir := filepath.Join(root, addr.String())
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, addr)
	}
	return &Function{addr: addr, dir: dir}, nil
}

// Addr returns the function's PCI address.
func (f *Function) Addr() Addr { return f.addr }

// IDs reads the vendor and device identity.
func (f *Function) IDs() (vendor, device uint16, err error) {
	v, err := readHexFile(filepath.Join(f.dir, "vendor"))
	if err != nil {
		return 0, 0, err
	}
	d, err := readHexFile(filepath.Join(f.dir, "device"))
	if err != nil {
		return 0, 0, err
	}
	return uint16(v), uint16(d), nil
}

// Enable powers up the function via the sysfs enable file.
func (f *Function) Enable() error {
	if err := os.WriteFile(filepath.Join(f.dir, "enable"), []byte("1"), 0); err != nil {
		return fmt.Errorf("pcibus: enable %s: %w", f.addr, err)
	}
	f.enabled = true
	return nil
}

func (f *Function) disable() error {
	if !f.enabled {
		return nil
	}
	f.enabled = false
	return os.WriteFile(filepath.Join(f.dir, "enable"), []byte("0"), 0)
}

// commandOffset is the config-space command register; bit 2 is bus
// master enable.
const (
	commandOffset    = 4
	commandBusMaster = 1 << 2
)

// EnableBusMaster sets the bus-master bit in the config-space command
// register. Later DMA-capable experiments need it even though the probe
// core itself never queues DMA.
func (f *Function) EnableBusMaster() error {
	path := filepath.Join(f.dir, "config")
	cf, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("pcibus: open config of %s: %w", f.addr, err)
	}
	defer cf.Close()
	var b [1]byte
	if _, err := cf.ReadAt(b[:], commandOffset); err != nil {
		return fmt.Errorf("pcibus: read command register of %s: %w", f.addr, err)
	}
	if b[0]&commandBusMaster != 0 {
		return nil
	}
	b[0] |= commandBusMaster
	if _, err := cf.WriteAt(b[:], commandOffset); err != nil {
		return fmt.Errorf("pcibus: write command register of %s: %w", f.addr, err)
	}
	return nil
}

// Resource is one claimed and mapped BAR.
type Resource struct {
	index int
	file  *os.File
	mem   []byte
}

// MapResource claims resourceN exclusively (advisory flock; sysfs has
// no kernel-side exclusion for memory resources) and mmaps it whole.
func (f *Function) MapResource(index int) (*Resource, error) {
	path := filepath.Join(f.dir, fmt.Sprintf("resource%d", index))
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("pcibus: open %s: %w", path, err)
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, fmt.Errorf("%w: resource%d of %s", ErrBusy, index, f.addr)
		}
		return nil, fmt.Errorf("pcibus: lock %s: %w", path, err)
	}
	st, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("pcibus: stat %s: %w", path, err)
	}
	mem, err := syscall.Mmap(int(file.Fd()), 0, int(st.Size()),
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("pcibus: mmap %s: %w", path, err)
	}
	r := &Resource{index: index, file: file, mem: mem}
	f.resources = append(f.resources, r)
	return r, nil
}

// Index returns the BAR index of the resource.
func (r *Resource) Index() int { return r.index }

// Bytes returns the mapped view. It is valid until Close.
func (r *Resource) Bytes() []byte { return r.mem }

// Size returns the mapped length in bytes.
func (r *Resource) Size() int { return len(r.mem) }

// Close unmaps and releases the claim. Safe to call twice.
func (r *Resource) Close() error {
	if r.file == nil {
		return nil
	}
	var err error
	if r.mem != nil {
		err = syscall.Munmap(r.mem)
		r.mem = nil
	}
	syscall.Flock(int(r.file.Fd()), syscall.LOCK_UN)
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	r.file = nil
	return err
}

// Close releases everything the function holds: resources in reverse
// mapping order, then the enable state. It runs on every exit path of
// the owning session, so it must tolerate partial initialization.
func (f *Function) Close() error {
	var errs []error
	for i := len(f.resources) - 1; i >= 0; i-- {
		if err := f.resources[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.resources = nil
	if err := f.disable(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
