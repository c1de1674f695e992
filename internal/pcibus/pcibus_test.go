package pcibus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFunction lays out a synthetic sysfs device directory. Resource
// files are regular files, which mmap the same way the real ones do.
func fakeFunction(t *testing.T, root, name string, vendor, device string, resSizes map[int]int64) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor"), []byte(vendor+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "device"), []byte(device+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "enable"), []byte("0\n"), 0o644))
	cfg := make([]byte, 64)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config"), cfg, 0o644))
	for idx, size := range resSizes {
		path := filepath.Join(dir, "resource"+string(rune('0'+idx)))
		rf, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, rf.Truncate(size))
		require.NoError(t, rf.Close())
	}
	return dir
}

func TestAddrRoundTrip(t *testing.T) {
	a, err := ParseAddr("0000:01:00.0")
	require.NoError(t, err)
	assert.Equal(t, "0000:01:00.0", a.String())

	a, err = ParseAddr("0001:a2:1f.7")
	require.NoError(t, err)
	assert.Equal(t, Addr{Domain: 1, Bus: 0xa2, Slot: 0x1f, Fn: 7}, a)

	_, err = ParseAddr("nonsense")
	assert.Error(t, err)
}

func TestFindMatchesIdentity(t *testing.T) {
	root := t.TempDir()
	fakeFunction(t, root, "0000:00:1f.3", "0x8086", "0x51c8", nil)
	fakeFunction(t, root, "0000:01:00.0", "0x14c3", "0x7927", nil)

	addr, err := Find(root, 0x14c3, 0x7927)
	require.NoError(t, err)
	assert.Equal(t, "0000:01:00.0", addr.String())

	_, err = Find(root, 0x14c3, 0x0616)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnableAndBusMaster(t *testing.T) {
	root := t.TempDir()
	dir := fakeFunction(t, root, "0000:01:00.0", "0x14c3", "0x7927", nil)
	addr, _ := ParseAddr("0000:01:00.0")

	f, err := Open(root, addr)
	require.NoError(t, err)

	require.NoError(t, f.Enable())
	b, _ := os.ReadFile(filepath.Join(dir, "enable"))
	assert.Equal(t, "1", string(b))

	require.NoError(t, f.EnableBusMaster())
	cfg, _ := os.ReadFile(filepath.Join(dir, "config"))
	assert.EqualValues(t, commandBusMaster, cfg[commandOffset])

	// Idempotent when the bit is already set.
	require.NoError(t, f.EnableBusMaster())

	require.NoError(t, f.Close())
	b, _ = os.ReadFile(filepath.Join(dir, "enable"))
	assert.Equal(t, "0", string(b))
}

func TestMapResource(t *testing.T) {
	root := t.TempDir()
	fakeFunction(t, root, "0000:01:00.0", "0x14c3", "0x7927", map[int]int64{0: 4096})
	addr, _ := ParseAddr("0000:01:00.0")
	f, err := Open(root, addr)
	require.NoError(t, err)
	defer f.Close()

	r, err := f.MapResource(0)
	require.NoError(t, err)
	assert.Equal(t, 4096, r.Size())
	r.Bytes()[0] = 0xab
	assert.EqualValues(t, 0xab, r.Bytes()[0])
	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "close must be idempotent")
}

func TestMapResourceBusy(t *testing.T) {
	root := t.TempDir()
	fakeFunction(t, root, "0000:01:00.0", "0x14c3", "0x7927", map[int]int64{0: 4096})
	addr, _ := ParseAddr("0000:01:00.0")

	f1, err := Open(root, addr)
	require.NoError(t, err)
	defer f1.Close()
	_, err = f1.MapResource(0)
	require.NoError(t, err)

	f2, err := Open(root, addr)
	require.NoError(t, err)
	defer f2.Close()
	_, err = f2.MapResource(0)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestMapResourceMissing(t *testing.T) {
	root := t.TempDir()
	fakeFunction(t, root, "0000:01:00.0", "0x14c3", "0x7927", nil)
	addr, _ := ParseAddr("0000:01:00.0")
	f, err := Open(root, addr)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.MapResource(2)
	assert.Error(t, err)
}
