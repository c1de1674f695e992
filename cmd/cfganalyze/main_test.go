package main

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func dumpBytes(order binary.ByteOrder, words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		order.PutUint32(buf[i*4:], w)
	}
	return buf
}

func TestAnalyzeListing(t *testing.T) {
	ctl := DumpCtl{
		Order:       binary.LittleEndian,
		BaseOffset:  0x080000,
		PhaseFilter: -1,
	}
	data := dumpBytes(binary.LittleEndian,
		0x16006004, // command: replace reg 0x60
		0x80123456, // addrref
		0x31000100, // delimiter
		0x00000000, // padding
		0x16012102, // command: or reg 0x21
		0xdeadbeef, // opaque
	)
	var out bytes.Buffer
	if err := ctl.analyze(data, &out); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	for _, want := range []string{
		"080000 p0 16006004  replace   reg=0x60 operand=0x04",
		"080004 p0 80123456  addrref tag=0x80 -> bar0+0x123456",
		"end of phase 0",
		"08000c p1 00000000  padding",
		"080010 p1 16012102  or        reg=0x21 operand=0x02",
		"080014 p1 deadbeef  opaque",
		"summary: 1 phases, 2 commands, 1 addrrefs, 1 opaque",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q\n%s", want, s)
		}
	}
}

func TestAnalyzeFilters(t *testing.T) {
	data := dumpBytes(binary.LittleEndian,
		0x16006004,
		0x00000000,
		0xffffffff,
		0xdeadbeef,
	)
	ctl := DumpCtl{
		Order:       binary.LittleEndian,
		OmitOpaque:  true,
		OmitPadding: true,
		PhaseFilter: -1,
	}
	var out bytes.Buffer
	if err := ctl.analyze(data, &out); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	if strings.Contains(s, "padding") || strings.Contains(s, "deadbeef  opaque") {
		t.Errorf("filters did not apply:\n%s", s)
	}
	if !strings.Contains(s, "reg=0x60") {
		t.Errorf("command filtered out:\n%s", s)
	}
}

func TestAnalyzePhaseFilter(t *testing.T) {
	data := dumpBytes(binary.LittleEndian,
		0x16002011, // phase 0
		0x31000100,
		0x16012402, // phase 1
	)
	ctl := DumpCtl{Order: binary.LittleEndian, PhaseFilter: 1}
	var out bytes.Buffer
	if err := ctl.analyze(data, &out); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	if strings.Contains(s, "reg=0x20") {
		t.Errorf("phase 0 word leaked through filter:\n%s", s)
	}
	if !strings.Contains(s, "reg=0x24") {
		t.Errorf("phase 1 word missing:\n%s", s)
	}
}

func TestAnalyzeBigEndianDump(t *testing.T) {
	data := dumpBytes(binary.BigEndian, 0x16006004)
	ctl := DumpCtl{Order: binary.BigEndian, PhaseFilter: -1}
	var out bytes.Buffer
	if err := ctl.analyze(data, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "reg=0x60") {
		t.Errorf("big endian dump not decoded:\n%s", out.String())
	}
}
