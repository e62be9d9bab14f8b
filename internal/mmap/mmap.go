// Package mmap provides read-only memory-mapped file access.
package mmap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MMap is a read-only mapping of a whole file.
type MMap struct {
	file *os.File
	data []byte
}

// Open maps the file at path into memory. Empty files are allowed and map
// to an empty slice.
func Open(path string) (*MMap, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	m := &MMap{file: file}
	if info.Size() == 0 {
		return m, nil
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to mmap: %w", err)
	}
	m.data = data
	return m, nil
}

// Data returns the mapped bytes. The slice must not be used after Close.
func (m *MMap) Data() []byte {
	return m.data
}

// Close unmaps and closes the file.
func (m *MMap) Close() error {
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			return fmt.Errorf("failed to munmap: %w", err)
		}
		m.data = nil
	}
	if m.file != nil {
		if err := m.file.Close(); err != nil {
			return fmt.Errorf("failed to close file: %w", err)
		}
		m.file = nil
	}
	return nil
}
