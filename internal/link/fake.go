package link

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/educube/groundstation/internal/telemetry"
)

// FakePort simulates an EduCube on the other end of a serial line. It
// answers telemetry requests with plausible lines for each board and applies
// actuator commands to its simulated state. A request to the CDH returns
// every board, as the real CDH forwards the whole bus.
type FakePort struct {
	now func() time.Time

	pr *io.PipeReader
	pw *io.PipeWriter

	out       chan string
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	pending []byte
	tick    int
	react   int
	magX    int
	magY    int
	heat    [2]int
	rails   map[string]bool
}

// NewFakePort creates a simulated EduCube. now may be nil.
func NewFakePort(now func() time.Time) *FakePort {
	if now == nil {
		now = time.Now
	}
	pr, pw := io.Pipe()
	f := &FakePort{
		now:   now,
		pr:    pr,
		pw:    pw,
		out:   make(chan string, 64),
		done:  make(chan struct{}),
		rails: map[string]bool{"R": true, "1": true, "2": true, "3": true},
	}
	go f.writeLoop()
	return f
}

// Read returns the bytes the simulated board transmits.
func (f *FakePort) Read(p []byte) (int, error) {
	return f.pr.Read(p)
}

// Write accepts bracketed commands, possibly split across calls.
func (f *FakePort) Write(p []byte) (int, error) {
	select {
	case <-f.done:
		return 0, io.ErrClosedPipe
	default:
	}

	f.mu.Lock()
	f.pending = append(f.pending, p...)
	var cmds []string
	for {
		start := bytes.IndexByte(f.pending, '[')
		if start < 0 {
			f.pending = f.pending[:0]
			break
		}
		end := bytes.IndexByte(f.pending, ']')
		if end < 0 {
			break
		}
		if end < start {
			f.pending = f.pending[start:]
			continue
		}
		cmds = append(cmds, string(f.pending[start+1:end]))
		f.pending = f.pending[end+1:]
	}
	f.mu.Unlock()

	for _, cmd := range cmds {
		f.handle(cmd)
	}
	return len(p), nil
}

// Close ends the simulation. Pending reads return io.EOF.
func (f *FakePort) Close() error {
	f.closeOnce.Do(func() {
		close(f.done)
		f.pw.Close()
	})
	return nil
}

// Emit queues a raw line, without line terminator, as if sent by the board.
func (f *FakePort) Emit(line string) {
	select {
	case f.out <- line + "\r\n":
	case <-f.done:
	}
}

func (f *FakePort) writeLoop() {
	for {
		select {
		case <-f.done:
			return
		case s := <-f.out:
			if _, err := io.WriteString(f.pw, s); err != nil {
				return
			}
		}
	}
}

func (f *FakePort) handle(cmd string) {
	parts := strings.Split(cmd, "|")
	if len(parts) < 3 || parts[0] != "C" {
		f.Emit("DEBUG|CDH|bad command " + cmd)
		return
	}
	board, op, args := parts[1], parts[2], parts[3:]

	if op == "T" {
		boards := []string{board}
		if board == telemetry.BoardCDH {
			boards = telemetry.Boards
		}
		for _, b := range boards {
			if line, ok := f.Telemetry(b); ok {
				f.Emit(line)
			}
		}
		return
	}

	if err := f.apply(board, op, args); err != nil {
		f.Emit("DEBUG|" + board + "|" + err.Error())
		return
	}
	f.Emit("DEBUG|" + board + "|ACK " + cmd)
}

func (f *FakePort) apply(board, op string, args []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch board + "|" + op {
	case "CDH|BLINKY":
		return nil

	case "ADC|REACT":
		v, err := strconv.Atoi(arg(1))
		if err != nil {
			return fmt.Errorf("bad REACT value %q", arg(1))
		}
		if arg(0) == "-" {
			v = -v
		}
		f.react = v

	case "ADC|MAG":
		sign := map[string]int{"+": 1, "0": 0, "-": -1}
		s, ok := sign[arg(1)]
		if !ok {
			return fmt.Errorf("bad MAG sign %q", arg(1))
		}
		switch arg(0) {
		case "X":
			f.magX = s
		case "Y":
			f.magY = s
		default:
			return fmt.Errorf("bad MAG axis %q", arg(0))
		}

	case "EXP|HEAT":
		panel, err1 := strconv.Atoi(arg(0))
		v, err2 := strconv.Atoi(arg(1))
		if err1 != nil || err2 != nil || panel < 1 || panel > 2 {
			return fmt.Errorf("bad HEAT %v", args)
		}
		f.heat[panel-1] = v

	case "EPS|PWR_ON", "EPS|PWR_OFF":
		if _, ok := f.rails[arg(0)]; !ok {
			return fmt.Errorf("bad rail %q", arg(0))
		}
		f.rails[arg(0)] = op == "PWR_ON"

	default:
		return fmt.Errorf("unknown command %s|%s", board, op)
	}
	return nil
}

// Telemetry renders the current simulated state of board as a full line.
func (f *FakePort) Telemetry(board string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tick++
	var d telemetry.Data
	switch board {
	case telemetry.BoardEPS:
		d = f.eps()
	case telemetry.BoardADC:
		d = f.adc()
	case telemetry.BoardEXP:
		d = f.exp()
	case telemetry.BoardCDH:
		d = f.cdh()
	default:
		return "", false
	}
	return "T|" + board + "|" + telemetry.Encode(board, d), true
}

func ptr[T any](v T) *T { return &v }

func fixed(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// wobble is a small deterministic variation around zero.
func (f *FakePort) wobble(scale float64) float64 {
	return scale * float64(f.tick%7-3) / 3
}

var epsRails = []struct {
	addr string
	bus  float64
	ma   float64
	rail string
}{
	{"64", 5.10, 210, ""}, {"65", 4.20, 180, ""}, {"66", 3.90, 350, ""},
	{"67", 5.00, 95, ""}, {"73", 3.30, 60, ""}, {"68", 5.00, 40, "R"},
	{"69", 5.00, 20, "1"}, {"72", 3.30, 15, "1"}, {"70", 5.00, 20, "2"},
	{"74", 3.30, 15, "2"}, {"71", 5.00, 20, "3"}, {"75", 3.30, 15, "3"},
}

func (f *FakePort) eps() telemetry.Data {
	var d telemetry.Data
	for _, r := range epsRails {
		ma := r.ma + f.wobble(r.ma/20)
		if r.rail != "" && !f.rails[r.rail] {
			ma = 0
		}
		d.INA = append(d.INA, telemetry.INA{
			Address:   r.addr,
			ShuntV:    fixed(ma / 100),
			BusV:      fixed(r.bus),
			CurrentMA: fixed(ma),
		})
	}

	d.DS2438 = &telemetry.DS2438{Temp: fixed(24 + f.wobble(0.5)), Voltage: fixed(3.9), Current: fixed(350)}
	d.DS18B20A = &telemetry.DS18B20{Temp: fixed(23.5 + f.wobble(0.3))}
	d.DS18B20B = &telemetry.DS18B20{Temp: fixed(23.8 + f.wobble(0.3))}
	d.Charging = ptr(f.tick%20 < 10)

	enabled := func(id string) int {
		if f.rails[id] {
			return 1
		}
		return 0
	}
	d.SwitchStatus = &telemetry.SwitchStatus{R: enabled("R"), S1: enabled("1"), S2: enabled("2"), S3: enabled("3")}
	return d
}

func (f *FakePort) adc() telemetry.Data {
	coil := func(s int) (string, string) {
		switch {
		case s > 0:
			return "1", "0"
		case s < 0:
			return "0", "1"
		}
		return "0", "0"
	}
	xp, xn := coil(f.magX)
	yp, yn := coil(f.magY)

	return telemetry.Data{
		SunSensors: &telemetry.SunSensors{
			Front: fixed(1.8 + f.wobble(0.2)),
			Right: fixed(0.9 + f.wobble(0.2)),
			Back:  fixed(0.1),
			Left:  fixed(0.4 + f.wobble(0.1)),
		},
		SunDir:     ptr(strconv.Itoa((f.tick * 15) % 360)),
		MagnoTorq:  &telemetry.MagnoTorq{XP: xp, XN: xn, YP: yp, YN: yn},
		ReactWheel: ptr(strconv.Itoa(f.react)),
		MPUAcc:     &telemetry.Vector{X: fixed(f.wobble(0.05)), Y: fixed(f.wobble(0.05)), Z: fixed(9.81)},
		MPUGyr:     &telemetry.Vector{X: fixed(0), Y: fixed(0), Z: fixed(float64(f.react) / 10)},
		MPUMag:     &telemetry.Vector{X: fixed(22.1), Y: fixed(-5.3), Z: fixed(41.7)},
	}
}

func (f *FakePort) exp() telemetry.Data {
	d := telemetry.Data{
		ThermPwr: &telemetry.PanelPair{
			P1: ptr(strconv.Itoa(f.heat[0])),
			P2: ptr(strconv.Itoa(f.heat[1])),
		},
	}
	for i, addr := range []string{"64", "67"} {
		ma := float64(f.heat[i]) * 2.5
		d.INA = append(d.INA, telemetry.INA{
			Address:   addr,
			ShuntV:    fixed(ma / 100),
			BusV:      fixed(5),
			CurrentMA: fixed(ma),
		})
	}

	zones := func(heat int) telemetry.PanelZones {
		base := 20 + float64(heat)/5
		return telemetry.PanelZones{
			A: ptr(fixed(base + f.wobble(0.1))),
			B: ptr(fixed(base + 0.2)),
			C: ptr(fixed(base + 0.4)),
		}
	}
	d.PanelTemp = &telemetry.PanelTemps{P1: zones(f.heat[0]), P2: zones(f.heat[1])}
	return d
}

func (f *FakePort) cdh() telemetry.Data {
	now := f.now().UTC()

	// Drift slowly east from Sydney.
	lat := -33.8688
	lon := 151.2093 + float64(f.tick)*0.001

	return telemetry.Data{
		GPSRaw: &telemetry.GPSRaw{
			Date: fmt.Sprintf("%d/%d/%dT%d:%d:%d", now.Year()%100, now.Month(), now.Day(),
				now.Hour(), now.Minute(), now.Second()),
			Lat: strconv.FormatInt(int64(lat*telemetry.DefaultGPSScale), 10),
			Lon: strconv.FormatInt(int64(lon*telemetry.DefaultGPSScale), 10),
		},
		GPSMeta:    &telemetry.GPSMeta{HDOP: "1.2", AltCM: "5400", StatusInt: "3"},
		Separation: &telemetry.Separation{ID: "2"},
		HotPlug:    &telemetry.HotPlug{ADC: "1", COMM: "0", EXP1: "1", SPARE: "0"},
	}
}
