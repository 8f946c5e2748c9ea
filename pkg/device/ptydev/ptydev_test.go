package ptydev

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesUsablePtyPair(t *testing.T) {
	d := New("")
	require.NoError(t, d.Open())
	defer d.Close()

	assert.NotEmpty(t, d.SlavePath())
}

func TestWriteOnMasterIsReadableFromSlave(t *testing.T) {
	d := New("")
	require.NoError(t, d.Open())
	defer d.Close()

	peer, err := os.OpenFile(d.SlavePath(), os.O_RDWR, 0)
	require.NoError(t, err)
	defer peer.Close()

	n, err := d.Write([]byte{0x90, 60, 100})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	buf := make([]byte, 3)
	_, err = peer.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 60, 100}, buf)
}

func TestOpenCreatesRequestedSymlink(t *testing.T) {
	link := filepath.Join(t.TempDir(), "midicore0")
	d := New(link)
	require.NoError(t, d.Open())
	defer d.Close()

	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, d.SlavePath(), target)
}

func TestCloseRemovesSymlink(t *testing.T) {
	link := filepath.Join(t.TempDir(), "midicore1")
	d := New(link)
	require.NoError(t, d.Open())
	require.NoError(t, d.Close())

	_, err := os.Lstat(link)
	assert.True(t, os.IsNotExist(err))
}
