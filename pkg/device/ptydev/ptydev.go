// Package ptydev is a device.Ops backed by a pseudo-terminal: it gives
// a demo host something to attach without any real MIDI hardware,
// while still exercising the same byte-stream interface a raw serial
// or USB-MIDI device would. Any program that opens the printed slave
// path (a terminal emulator, `cat`, another instance of this module)
// can feed or observe the MIDI byte stream.
package ptydev

import (
	"fmt"
	"os"

	"github.com/creack/pty"
)

// Device is a device.Ops implementation wrapping one pty pair. Open
// creates the pair; SlavePath reports the path a peer should open to
// talk to it.
type Device struct {
	master  *os.File
	slave   *os.File
	symlink string
}

// New returns an unopened Device. If symlink is non-empty, Open
// additionally creates a symlink at that path pointing at the slave,
// a convenience for well-known names like /tmp/midicore0.
func New(symlink string) *Device {
	return &Device{symlink: symlink}
}

// Open creates the underlying pty pair.
func (d *Device) Open() error {
	master, slave, err := pty.Open()
	if err != nil {
		return fmt.Errorf("ptydev: open: %w", err)
	}
	d.master = master
	d.slave = slave
	if d.symlink != "" {
		_ = os.Remove(d.symlink)
		if err := os.Symlink(slave.Name(), d.symlink); err != nil {
			return fmt.Errorf("ptydev: symlink: %w", err)
		}
	}
	return nil
}

// Close releases both ends of the pty pair and removes the symlink,
// if one was requested.
func (d *Device) Close() error {
	if d.symlink != "" {
		_ = os.Remove(d.symlink)
	}
	errM := d.master.Close()
	errS := d.slave.Close()
	if errM != nil {
		return errM
	}
	return errS
}

// Read reads bytes written by whatever peer has the slave side open.
func (d *Device) Read(buf []byte) (int, error) {
	return d.master.Read(buf)
}

// Write sends bytes to whatever peer has the slave side open.
func (d *Device) Write(buf []byte) (int, error) {
	return d.master.Write(buf)
}

// SlavePath returns the pty's slave-side path, the name a peer opens
// to exchange MIDI bytes with this device.
func (d *Device) SlavePath() string {
	return d.slave.Name()
}
