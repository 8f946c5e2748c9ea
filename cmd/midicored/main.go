// Command midicored is a small demonstration host for the midicore
// scheduling core: it attaches a handful of pty-backed demo MIDI
// devices, wires an internal (or external/MTC-slaved) clock through a
// multiplexer into a song, and runs the cooperative single-threaded
// event loop everything in this module assumes. It is not a
// shell/REPL/SMF loader -- just enough wiring to drive the core.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/zurustar/midicore/pkg/device"
	"github.com/zurustar/midicore/pkg/device/ptydev"
	"github.com/zurustar/midicore/pkg/event"
	"github.com/zurustar/midicore/pkg/logger"
	"github.com/zurustar/midicore/pkg/mux"
	"github.com/zurustar/midicore/pkg/song"
	"github.com/zurustar/midicore/pkg/timeq"
	"github.com/zurustar/midicore/pkg/track"
)

// timerTick is the nominal OS timer period TimerCB is fed, in 1/24us
// units: 1ms.
const timerTick uint32 = 24000000 / 1000

func main() {
	var (
		numDevices = pflag.IntP("devices", "d", 2, "number of pty-backed demo MIDI devices to attach (1-16)")
		tempoBPM   = pflag.Float64P("tempo", "t", 120, "initial tempo, in beats per minute")
		clockSrc   = pflag.StringP("clock", "c", "internal", "tick clock source: internal, external, or mtc")
		clockUnit  = pflag.IntP("clock-unit", "u", 0, "device unit providing the external/mtc clock (ignored for --clock=internal)")
		demoTrack  = pflag.BoolP("demo-track", "T", true, "seed track 0 with a short example phrase")
		logLevel   = pflag.StringP("log-level", "l", "info", "log level: debug, info, warn, error")
		help       = pflag.BoolP("help", "h", false, "display help text")
	)
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "midicored: demonstration host for the midicore scheduling core")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		return
	}

	if err := logger.InitLogger(*logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "midicored:", err)
		os.Exit(1)
	}
	log := logger.GetLogger()

	n := *numDevices
	if n < 1 {
		n = 1
	}
	if n > device.MaxUnits {
		n = device.MaxUnits
	}

	queue := timeq.New()
	table := device.NewTable(queue)
	mx := mux.New(table, queue)

	devs := make([]*ptydev.Device, 0, n)
	for i := 0; i < n; i++ {
		symlink := fmt.Sprintf("/tmp/midicore%d", i)
		pd := ptydev.New(symlink)
		d, err := table.Attach(i, pd, device.ModeIn|device.ModeOut)
		if err != nil {
			log.Error("midicored: attach failed", "unit", i, "error", err)
			os.Exit(1)
		}
		if err := d.Open(); err != nil {
			log.Error("midicored: open failed", "unit", i, "error", err)
			os.Exit(1)
		}
		d.SendClk = true
		mx.WireDevice(d)
		devs = append(devs, pd)
		log.Info("midicored: attached demo device", "unit", i, "path", pd.SlavePath())
	}
	defer table.DoneAll()

	switch *clockSrc {
	case "internal":
	case "external":
		if err := mx.SetClockSource(mux.External, *clockUnit); err != nil {
			log.Error("midicored: bad clock device", "unit", *clockUnit, "error", err)
			os.Exit(1)
		}
	case "mtc":
		if err := mx.SetClockSource(mux.MTCSlave, *clockUnit); err != nil {
			log.Error("midicored: bad mtc device", "unit", *clockUnit, "error", err)
			os.Exit(1)
		}
	default:
		log.Error("midicored: unknown clock source", "clock", *clockSrc)
		os.Exit(1)
	}

	sng := song.New(queue, mx)

	bpm := *tempoBPM
	if bpm <= 0 {
		bpm = 120
	}
	usec24 := uint32(60 * 24000000 / (bpm * float64(song.DefaultTicsPerBeat)))
	if usec24 < event.TempoMin() {
		usec24 = event.TempoMin()
	}
	if usec24 > event.TempoMax() {
		usec24 = event.TempoMax()
	}
	sng.TempoUsec24 = usec24
	mx.SetTicLength(usec24)
	sng.Meta.Insert(0, []track.SeqEv{{Delta: 0, Ev: event.NewTempo(usec24)}})

	for i, pd := range devs {
		sng.AddChan(pd.SlavePath(), uint8(i), 0, true, true)
	}

	if *demoTrack {
		tr := sng.AddTrack("demo")
		phrase := []track.SeqEv{
			{Delta: 0, Ev: event.Event{Cmd: event.NoteOn, Dev: 0, Ch: 0, V0: 60, V1: 96}},
			{Delta: 24, Ev: event.Event{Cmd: event.NoteOff, Dev: 0, Ch: 0, V0: 60, V1: 0}},
			{Delta: 0, Ev: event.Event{Cmd: event.NoteOn, Dev: 0, Ch: 0, V0: 64, V1: 96}},
			{Delta: 24, Ev: event.Event{Cmd: event.NoteOff, Dev: 0, Ch: 0, V0: 64, V1: 0}},
			{Delta: 0, Ev: event.Event{Cmd: event.NoteOn, Dev: 0, Ch: 0, V0: 67, V1: 96}},
			{Delta: 24, Ev: event.Event{Cmd: event.NoteOff, Dev: 0, Ch: 0, V0: 67, V1: 0}},
		}
		tr.Track.Insert(0, phrase)
		log.Info("midicored: seeded demo track", "name", tr.Name, "events", tr.Track.NumEv())
	}

	mx.OnTick = sng.Tick
	mx.OnStart = func() {
		if err := sng.StartReq(song.Play); err != nil {
			log.Debug("midicored: start request ignored", "error", err)
		}
	}
	mx.OnStop = func() {
		if err := sng.SetMode(song.Idle); err != nil {
			log.Debug("midicored: stop ignored", "error", err)
		}
	}
	mx.OnEvent = sng.HandleInput
	mx.OnPhase = func(p mux.Phase) { log.Debug("midicored: transport phase", "phase", p.String()) }
	mx.OnRelocate = sng.LocMTC

	type inputMsg struct {
		unit int
		data []byte
	}
	inputCh := make(chan inputMsg, 64)
	for i, pd := range devs {
		unit, pd := i, pd
		go func() {
			buf := make([]byte, 256)
			for {
				n, err := pd.Read(buf)
				if n > 0 {
					cp := append([]byte(nil), buf[:n]...)
					inputCh <- inputMsg{unit: unit, data: cp}
				}
				if err != nil {
					return
				}
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	log.Info("midicored: ready", "devices", n, "clock", *clockSrc, "tempo_bpm", bpm)
	mx.StartRequest()

	for {
		select {
		case <-sigCh:
			log.Info("midicored: shutting down")
			mx.StopRequest()
			return
		case <-ticker.C:
			mx.TimerCB(timerTick)
		case msg := <-inputCh:
			if d := table.ByUnit(msg.unit); d != nil {
				d.InputCB(msg.data)
				mx.Flush()
			}
		}
	}
}
