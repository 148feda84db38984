package emu

import "encoding/binary"

// Memory is a fixed-size, byte-addressable, little-endian main memory.
// Reads outside the memory return 0 and writes outside it are dropped.
type Memory struct {
	data []byte
}

// NewMemory creates a zeroed memory of size bytes.
func NewMemory(size uint32) *Memory {
	return &Memory{data: make([]byte, size)}
}

// Size returns the memory size in bytes.
func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

// Contains reports whether the size bytes starting at addr are inside the
// memory.
func (m *Memory) Contains(addr uint32, size int) bool {
	return uint64(addr)+uint64(size) <= uint64(len(m.data))
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint32) uint8 {
	if !m.Contains(addr, 1) {
		return 0
	}
	return m.data[addr]
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint32, value uint8) {
	if !m.Contains(addr, 1) {
		return
	}
	m.data[addr] = value
}

// Read32 reads a little-endian word.
func (m *Memory) Read32(addr uint32) uint32 {
	if !m.Contains(addr, 4) {
		return 0
	}
	return binary.LittleEndian.Uint32(m.data[addr:])
}

// Write32 writes a little-endian word.
func (m *Memory) Write32(addr uint32, value uint32) {
	if !m.Contains(addr, 4) {
		return
	}
	binary.LittleEndian.PutUint32(m.data[addr:], value)
}

// ReadBlock copies size bytes starting at addr. Bytes outside the memory
// read as 0.
func (m *Memory) ReadBlock(addr uint32, size int) []byte {
	block := make([]byte, size)
	for i := range block {
		block[i] = m.Read8(addr + uint32(i))
	}
	return block
}

// WriteBlock copies data into memory starting at addr.
func (m *Memory) WriteBlock(addr uint32, data []byte) {
	for i, b := range data {
		m.Write8(addr+uint32(i), b)
	}
}

// LoadWords writes words little-endian starting at address 0, overwriting
// whatever was there. Words that do not fit are dropped.
func (m *Memory) LoadWords(words []uint32) {
	for i, w := range words {
		m.Write32(uint32(i)*4, w)
	}
}

// Clear zeroes the whole memory.
func (m *Memory) Clear() {
	clear(m.data)
}
