package dma

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScheduleOAMCopies256Bytes(t *testing.T) {
	d := New()
	var halted bool
	d.ScheduleOAM(0x02, func() { halted = true })
	require.True(t, halted)
	require.True(t, d.Pending())

	var mem [0x300]uint8
	for i := range mem {
		mem[i] = uint8(i)
	}
	var written []uint8
	reads := 0

	d.Process(
		func(addr uint16) uint8 { reads++; return mem[addr] },
		func(addr uint16, val uint8) { require.EqualValues(t, 0x2004, addr); written = append(written, val) },
		func(uint8) { t.Fatal("OAM transfer must not deliver a DMC byte") },
		false,
		0x0000,
	)

	require.Len(t, written, 256)
	for i, v := range written {
		require.Equal(t, mem[0x0200+i], v)
	}
	require.False(t, d.Pending())
	require.Equal(t, 257, reads, "1 halt cycle + 256 transfer reads")
}

func TestScheduleDMCDeliversOneByte(t *testing.T) {
	d := New()
	d.ScheduleDMC(0xC123, func() {})

	var delivered uint8
	var gotDeliver bool
	d.Process(
		func(addr uint16) uint8 {
			if addr == 0xC123 {
				return 0x5A
			}
			return 0
		},
		func(uint16, uint8) { t.Fatal("DMC transfer must not write") },
		func(v uint8) { delivered = v; gotDeliver = true },
		true,
		0x0000,
	)

	require.True(t, gotDeliver)
	require.Equal(t, uint8(0x5A), delivered)
	require.False(t, d.Pending())
}

func TestPutCycleAddsAlignmentRead(t *testing.T) {
	d := New()
	d.ScheduleDMC(0x8000, func() {})

	reads := 0
	d.Process(
		func(uint16) uint8 { reads++; return 0 },
		func(uint16, uint8) {},
		func(uint8) {},
		true, // put cycle
		0x0000,
	)
	// 1 halt + 1 DMC dummy + 1 put-alignment + 1 actual sample fetch
	require.Equal(t, 4, reads)
}
