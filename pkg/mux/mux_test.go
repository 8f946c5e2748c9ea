package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zurustar/midicore/pkg/device"
	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/timeq"
)

type memOps struct {
	written []byte
}

func (m *memOps) Open() error  { return nil }
func (m *memOps) Close() error { return nil }
func (m *memOps) Read(buf []byte) (int, error) {
	return 0, nil
}
func (m *memOps) Write(buf []byte) (int, error) {
	m.written = append(m.written, buf...)
	return len(buf), nil
}

func newMux() (*Mux, *timeq.Queue, *device.Table) {
	q := timeq.New()
	tbl := device.NewTable(q)
	m := New(tbl, q)
	return m, q, tbl
}

func TestInternalClockFiresFirstTickAfterStartDelay(t *testing.T) {
	m, _, _ := newMux()
	m.SetTicLength(1000)
	var ticks int
	m.OnTick = func() { ticks++ }

	m.StartRequest()
	require.Equal(t, Start, m.Phase())

	m.TimerCB(StartDelay - 1)
	assert.Equal(t, 0, ticks)
	assert.Equal(t, Start, m.Phase())

	m.TimerCB(1)
	assert.Equal(t, 1, ticks)
	assert.Equal(t, Next, m.Phase())
}

func TestInternalClockFiresOneTickPerTicLength(t *testing.T) {
	m, _, _ := newMux()
	m.SetTicLength(100)
	var ticks int
	m.OnTick = func() { ticks++ }
	m.StartRequest()
	m.TimerCB(StartDelay)

	ticks = 0
	m.TimerCB(350)
	assert.Equal(t, 3, ticks)
}

func TestStartRequestSendsMMCStartToSendMMCDevices(t *testing.T) {
	m, _, tbl := newMux()
	ops := &memOps{}
	d, err := tbl.Attach(0, ops, device.ModeOut)
	require.NoError(t, err)
	require.NoError(t, d.Open())
	d.SendMMC = true

	m.StartRequest()
	assert.Equal(t, []byte{0xf0, 0x7f, 0x7f, 0x06, 0x02, 0xf7}, ops.written)
}

func TestStopRequestSendsMIDIStopOnlyAfterPlaybackBegan(t *testing.T) {
	m, _, tbl := newMux()
	ops := &memOps{}
	d, err := tbl.Attach(0, ops, device.ModeOut)
	require.NoError(t, err)
	require.NoError(t, d.Open())
	d.SendClk = true

	m.StopRequest()
	assert.NotContains(t, ops.written, event.Stop)

	m.SetTicLength(10)
	m.StartRequest()
	m.TimerCB(StartDelay)
	ops.written = nil
	m.StopRequest()
	assert.Contains(t, ops.written, event.Stop)
	assert.Equal(t, Stop, m.Phase())
}

func TestExternalClockAdvancesOnDeviceTic(t *testing.T) {
	m, _, tbl := newMux()
	ops := &memOps{}
	d, err := tbl.Attach(0, ops, device.ModeIn)
	require.NoError(t, err)
	require.NoError(t, m.SetClockSource(External, 0))
	m.WireDevice(d)

	var ticks int
	m.OnTick = func() { ticks++ }
	m.StartRequest()
	assert.Equal(t, StartWait, m.Phase())

	d.OnStart()
	assert.Equal(t, Start, m.Phase())

	d.OnTic()
	assert.Equal(t, 1, ticks)
	assert.Equal(t, Next, m.Phase())

	d.OnTic()
	assert.Equal(t, 2, ticks)
}

func TestGotoRequestWithInternalClockRelocatesImmediately(t *testing.T) {
	m, _, _ := newMux()
	var got uint32
	var called bool
	m.OnRelocate = func(pos uint32) { got = pos; called = true }

	m.GotoRequest(4800)
	require.True(t, called)
	assert.Equal(t, uint32(4800), got)
}

func TestWireDeviceRoutesPackedEventsToOnEvent(t *testing.T) {
	m, _, tbl := newMux()
	ops := &memOps{}
	d, err := tbl.Attach(0, ops, device.ModeIn)
	require.NoError(t, err)
	m.WireDevice(d)

	var got []event.Event
	m.OnEvent = func(unit int, ev event.Event) { got = append(got, ev) }

	d.OnEvent(event.Event{Cmd: event.NoteOn, Ch: 0, V0: 60, V1: 100})
	require.Len(t, got, 1)
	assert.Equal(t, event.NoteOn, got[0].Cmd)
}

func TestPutOutputUnpacksThroughDeviceCodec(t *testing.T) {
	m, _, tbl := newMux()
	ops := &memOps{}
	d, err := tbl.Attach(0, ops, device.ModeOut)
	require.NoError(t, err)
	require.NoError(t, d.Open())
	m.WireDevice(d)

	m.PutOutput(0, event.Event{Cmd: event.NoteOn, Ch: 0, V0: 60, V1: 100})
	d.Flush()
	assert.Equal(t, []byte{0x90, 60, 100}, ops.written)
}

func TestOnStartFiresExactlyOnceEnteringFirstPhase(t *testing.T) {
	m, _, _ := newMux()
	m.SetTicLength(100)
	var starts int
	var phaseAtStart Phase
	m.OnStart = func() { starts++; phaseAtStart = m.Phase() }

	m.StartRequest()
	m.TimerCB(StartDelay)
	assert.Equal(t, 1, starts)
	assert.Equal(t, First, phaseAtStart)

	m.TimerCB(100)
	assert.Equal(t, 1, starts)

	m.StopRequest()
	m.StartRequest()
	m.TimerCB(StartDelay)
	assert.Equal(t, 2, starts)
}
