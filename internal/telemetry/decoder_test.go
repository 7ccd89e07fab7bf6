package telemetry

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"
)

const (
	epsLine = "I,66,1.67,6.58,17.00|DA,25.72,6.93,975.00|DB,191.69|DC,171.13|C,0"
	adcLine = "SOL,1.10,2.20,3.30,4.40|ANG,45|MAG,1,0,0,1|WHL,30|MPU,ACC,0.1,0.2,9.8|MPU,GYR,1,2,3|MPU,MAG,4,5,6"
	expLine = "THERM_P1,0|THERM_P2,0|I,64,-0.09,0.00,-1.00|I,67,-0.08,0.00,-0.20|P1A,20.69|P1B,20.81|P1C,20.88|P2A,20.94|P2B,21.06|P2C,2"
	cdhLine = "GPS,19/06/05T12:34:56,-337654321,1512345678,1.2,5400,3|SEP,1,1,1,0,0"
)

func newTestDecoder() *Decoder {
	return NewDecoder(DefaultOptions(), nil)
}

func TestDecode_EPS(t *testing.T) {
	d, err := newTestDecoder().Decode(BoardEPS, epsLine)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if d.Charging == nil || *d.Charging {
		t.Errorf("CHARGING = %v, want false", d.Charging)
	}
	if want := (DS2438{Temp: "25.72", Voltage: "6.93", Current: "975.00"}); d.DS2438 == nil || *d.DS2438 != want {
		t.Errorf("DS2438 = %+v, want %+v", d.DS2438, want)
	}
	if d.DS18B20B == nil || d.DS18B20B.Temp != "191.69" {
		t.Errorf("DS18B20_B = %+v, want temp 191.69", d.DS18B20B)
	}
	if d.DS18B20A == nil || d.DS18B20A.Temp != "171.13" {
		t.Errorf("DS18B20_A = %+v, want temp 171.13", d.DS18B20A)
	}

	if len(d.INA) != 1 {
		t.Fatalf("len(INA) = %d, want 1", len(d.INA))
	}
	ina := d.INA[0]
	if ina.Address != "66" || ina.ShuntV != "1.67" || ina.BusV != "6.58" || ina.CurrentMA != "17.00" {
		t.Errorf("INA = %+v", ina)
	}
	if ina.Name != "VBatt" {
		t.Errorf("INA name = %q, want VBatt", ina.Name)
	}
	if ina.PowerMW != "111.86" {
		t.Errorf("INA power_mW = %q, want 111.86", ina.PowerMW)
	}
	if ina.SwitchEnabled == nil || *ina.SwitchEnabled != 1 {
		t.Errorf("INA switch_enabled = %v, want 1", ina.SwitchEnabled)
	}
}

func TestDecode_EPSJSON(t *testing.T) {
	d, err := newTestDecoder().Decode(BoardEPS, epsLine)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	for _, want := range []string{
		`"CHARGING":false`,
		`"DS2438":{"temp":"25.72","voltage":"6.93","current":"975.00"}`,
		`"DS18B20_B":{"temp":"191.69"}`,
		`"DS18B20_A":{"temp":"171.13"}`,
		`"address":"66","shunt_V":"1.67","bus_V":"6.58","current_mA":"17.00"`,
	} {
		if !strings.Contains(string(out), want) {
			t.Errorf("JSON %s missing %s", out, want)
		}
	}
	if strings.Contains(string(out), "SUN_SENSORS") {
		t.Errorf("JSON %s carries ADC fields", out)
	}
}

func TestDecode_EPSSwitchStatus(t *testing.T) {
	// I_E after the INA tokens it applies to.
	line := "I,69,0.10,5.01,10.00|I,70,0.10,5.02,11.00|I,68,0.10,5.00,12.00|I_E,0,0,1,1|C,1"

	d, err := newTestDecoder().Decode(BoardEPS, line)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if d.Charging == nil || !*d.Charging {
		t.Errorf("CHARGING = %v, want true", d.Charging)
	}

	want := map[string]struct {
		name    string
		cmd     string
		enabled int
	}{
		"69": {"SW1-5V", "1", 0},
		"70": {"SW2-5V", "2", 1},
		"68": {"Radio", "R", 0},
	}
	if len(d.INA) != len(want) {
		t.Fatalf("len(INA) = %d, want %d", len(d.INA), len(want))
	}
	for _, ina := range d.INA {
		w := want[ina.Address]
		if ina.Name != w.name || ina.CommandID != w.cmd {
			t.Errorf("INA %s = %q/%q, want %q/%q", ina.Address, ina.Name, ina.CommandID, w.name, w.cmd)
		}
		if ina.SwitchEnabled == nil || *ina.SwitchEnabled != w.enabled {
			t.Errorf("INA %s switch_enabled = %v, want %d", ina.Address, ina.SwitchEnabled, w.enabled)
		}
	}
}

func TestDecode_EPSLegacyINAAndDuplicates(t *testing.T) {
	d, err := newTestDecoder().Decode(BoardEPS, "I,64,5.00,2.00|I,65,4.00,1.00|I,64,6.00,3.00")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(d.INA) != 2 {
		t.Fatalf("len(INA) = %d, want 2", len(d.INA))
	}
	if d.INA[0].Address != "64" || d.INA[0].BusV != "6.00" || d.INA[0].ShuntV != "" {
		t.Errorf("INA[0] = %+v, want latest 64 reading without shunt", d.INA[0])
	}
	if d.INA[0].PowerMW != "18.00" {
		t.Errorf("INA[0] power_mW = %q, want 18.00", d.INA[0].PowerMW)
	}
	if d.Charging != nil {
		t.Errorf("CHARGING = %v, want nil", *d.Charging)
	}
}

func TestDecode_ADC(t *testing.T) {
	d, err := newTestDecoder().Decode(BoardADC, adcLine)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if want := (SunSensors{Front: "1.10", Right: "2.20", Back: "3.30", Left: "4.40"}); d.SunSensors == nil || *d.SunSensors != want {
		t.Errorf("SUN_SENSORS = %+v, want %+v", d.SunSensors, want)
	}
	if d.SunDir == nil || *d.SunDir != "45" {
		t.Errorf("SUN_DIR = %v, want 45", d.SunDir)
	}
	if d.ReactWheel == nil || *d.ReactWheel != "30" {
		t.Errorf("REACT_WHEEL = %v, want 30", d.ReactWheel)
	}
	if d.MagnoTorq == nil || d.MagnoTorq.X != 1 || d.MagnoTorq.Y != -1 {
		t.Errorf("MAGNO_TORQ = %+v, want X=1 Y=-1", d.MagnoTorq)
	}
	if want := (Vector{X: "0.1", Y: "0.2", Z: "9.8"}); d.MPUAcc == nil || *d.MPUAcc != want {
		t.Errorf("MPU_ACC = %+v, want %+v", d.MPUAcc, want)
	}
	if d.MPUGyr == nil || d.MPUGyr.Z != "3" {
		t.Errorf("MPU_GYR = %+v", d.MPUGyr)
	}
	if d.MPUMag == nil || d.MPUMag.X != "4" {
		t.Errorf("MPU_MAG = %+v", d.MPUMag)
	}
}

func TestTorquerSign(t *testing.T) {
	tests := []struct {
		pos, neg, want int
	}{
		{0, 0, 0},
		{1, 0, 1},
		{0, 1, -1},
		{1, 1, 0},
	}
	for _, tt := range tests {
		if got := torquerSign(tt.pos, tt.neg); got != tt.want {
			t.Errorf("torquerSign(%d, %d) = %d, want %d", tt.pos, tt.neg, got, tt.want)
		}
	}
}

func TestDecode_EXP(t *testing.T) {
	d, err := newTestDecoder().Decode(BoardEXP, expLine)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if d.ThermPwr == nil || d.ThermPwr.P1 == nil || *d.ThermPwr.P1 != "0" || d.ThermPwr.P2 == nil {
		t.Errorf("THERM_PWR = %+v", d.ThermPwr)
	}
	if len(d.INA) != 2 || d.INA[0].Name != "P1" || d.INA[1].Name != "P2" {
		t.Fatalf("INA = %+v, want P1 and P2", d.INA)
	}
	if d.INA[1].ShuntV != "-0.08" || d.INA[1].CurrentMA != "-0.20" {
		t.Errorf("INA[1] = %+v", d.INA[1])
	}
	if d.INA[0].SwitchEnabled != nil || d.INA[0].CommandID != "" {
		t.Errorf("EXP INA carries EPS switch fields: %+v", d.INA[0])
	}
	if d.PanelTemp == nil {
		t.Fatal("PANEL_TEMP missing")
	}
	if d.PanelTemp.P1.A == nil || *d.PanelTemp.P1.A != "20.69" {
		t.Errorf("P1.A = %v, want 20.69", d.PanelTemp.P1.A)
	}
	if d.PanelTemp.P2.C == nil || *d.PanelTemp.P2.C != "2" {
		t.Errorf("P2.C = %v, want 2", d.PanelTemp.P2.C)
	}
}

func TestDecode_EXPTruncated(t *testing.T) {
	line := "THERM_P1,100|THERM_P2|I,64,0.01,5.00,2.00|I,6|I,99,1,2,3|P1A,20.69|P1B,20.81|P1C,20.88|P2A,20.94|P2B"

	d, err := newTestDecoder().Decode(BoardEXP, line)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if d.ThermPwr == nil || d.ThermPwr.P2 != nil {
		t.Errorf("THERM_PWR.P2 = %v, want nil", d.ThermPwr)
	}
	if len(d.INA) != 1 {
		t.Errorf("len(INA) = %d, want 1 (corrupt and unknown entries skipped)", len(d.INA))
	}
	if d.PanelTemp.P2.A == nil || *d.PanelTemp.P2.A != "20.94" {
		t.Errorf("P2.A = %v, want 20.94", d.PanelTemp.P2.A)
	}
	if d.PanelTemp.P2.B != nil || d.PanelTemp.P2.C != nil {
		t.Errorf("P2.B/P2.C = %v/%v, want nil", d.PanelTemp.P2.B, d.PanelTemp.P2.C)
	}

	out, err := json.Marshal(d.PanelTemp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(out), `"P2":{"A":"20.94","B":null,"C":null}`) {
		t.Errorf("PANEL_TEMP JSON = %s", out)
	}
}

func TestDecode_CDH(t *testing.T) {
	d, err := newTestDecoder().Decode(BoardCDH, cdhLine)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if d.GPSDate == nil || *d.GPSDate != "2019/06/05  12:34:56" {
		t.Errorf("GPS_DATE = %v, want 2019/06/05  12:34:56", d.GPSDate)
	}
	if d.GPSFix == nil {
		t.Fatal("GPS_FIX missing")
	}
	if math.Abs(d.GPSFix.Lat-(-33.7654321)) > 1e-9 || math.Abs(d.GPSFix.Lon-151.2345678) > 1e-9 {
		t.Errorf("GPS_FIX = %+v, want -33.7654321, 151.2345678", d.GPSFix)
	}
	if d.GPSRaw == nil || d.GPSRaw.Lat != "-337654321" {
		t.Errorf("GPS_RAW = %+v", d.GPSRaw)
	}
	if want := (GPSMeta{HDOP: "1.2", AltCM: "5400", StatusInt: "3", Status: "STD"}); d.GPSMeta == nil || *d.GPSMeta != want {
		t.Errorf("GPS_META = %+v, want %+v", d.GPSMeta, want)
	}
	if want := (Separation{ID: "1", Val: "Separated"}); d.Separation == nil || *d.Separation != want {
		t.Errorf("SEPARATION = %+v, want %+v", d.Separation, want)
	}
	if want := (HotPlug{ADC: "1", COMM: "1", EXP1: "0", SPARE: "0"}); d.HotPlug == nil || *d.HotPlug != want {
		t.Errorf("HOT_PLUG = %+v, want %+v", d.HotPlug, want)
	}
}

func TestDecode_CDHScale(t *testing.T) {
	dec := NewDecoder(Options{GPSScale: 1e5}, nil)
	d, err := dec.Decode(BoardCDH, "GPS,0/1/1T0:0:0,-3376543,15123456,99.9,0")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if d.GPSDate != nil {
		t.Errorf("GPS_DATE = %q, want nil before first fix", *d.GPSDate)
	}
	if d.GPSFix == nil || math.Abs(d.GPSFix.Lat-(-33.76543)) > 1e-9 {
		t.Errorf("GPS_FIX = %+v, want lat -33.76543", d.GPSFix)
	}
	if d.GPSMeta == nil || d.GPSMeta.Status != "No Fix" {
		t.Errorf("GPS_META = %+v, want No Fix", d.GPSMeta)
	}
}

func TestDecode_CDHNonIntegerCoordinates(t *testing.T) {
	for _, coords := range []string{"nan,inf", "-Infinity,1", "0x1p4,5", "-33.7,151.2"} {
		t.Run(coords, func(t *testing.T) {
			d, err := newTestDecoder().Decode(BoardCDH, "GPS,19/06/05T12:34:56,"+coords+",1,2|SEP,1")
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if d.GPSFix != nil {
				t.Errorf("GPS_FIX = %+v, want nil", d.GPSFix)
			}
			if d.GPSRaw == nil || d.Separation == nil {
				t.Errorf("GPS_RAW = %+v, SEP = %+v, want both kept", d.GPSRaw, d.Separation)
			}
			if _, err := json.Marshal(d); err != nil {
				t.Errorf("Marshal failed: %v", err)
			}
		})
	}
}

func TestParseGPSDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"19/06/05T12:34:56", "2019/06/05  12:34:56"},
		{"21/1/2T3:4:5", "2021/01/02  03:04:05"},
		{"5/1/2T3:4:5", "2005/01/02  03:04:05"},
		{"0/1/1T0:0:0", ""},
		{"00/06/05T12:00:00", ""},
		{"19/02/30T00:00:00", ""},
		{"19/06/05T24:00:00", ""},
		{"19/06/05", ""},
		{"garbage", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseGPSDate(tt.in)
			if tt.want == "" {
				if got != nil {
					t.Errorf("parseGPSDate(%q) = %q, want nil", tt.in, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("parseGPSDate(%q) = %v, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecode_UnparseableLine(t *testing.T) {
	for _, board := range Boards {
		d, err := newTestDecoder().Decode(board, "garbage|,,,|XYZ,1,2")
		if err != nil {
			t.Errorf("Decode(%s) error = %v, want nil", board, err)
		}
		if !d.IsEmpty() {
			t.Errorf("Decode(%s) = %+v, want empty", board, d)
		}
		out, _ := json.Marshal(d)
		if string(out) != "{}" {
			t.Errorf("Decode(%s) JSON = %s, want {}", board, out)
		}
	}
}

func TestDecode_UnknownBoard(t *testing.T) {
	_, err := newTestDecoder().Decode("COMM", "X,1")
	if !errors.Is(err, ErrUnknownBoard) {
		t.Errorf("Decode error = %v, want ErrUnknownBoard", err)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	tests := []struct {
		board string
		telem string
	}{
		{BoardEPS, epsLine},
		{BoardEPS, "I,69,0.10,5.01,10.00|I,64,5.00,2.00|I_E,0,1,1,0|C,1"},
		{BoardEPS, "I,66,,6.58,17.00|DA,,,"},
		{BoardADC, adcLine},
		{BoardADC, "MAG,01,1,0,0|ANG,"},
		{BoardEXP, expLine},
		{BoardEXP, "THERM_P2|P2B,21.06|I,67,-0.08,0.00,-0.20"},
		{BoardCDH, cdhLine},
		{BoardCDH, "GPS,0/1/1T0:0:0,0,0,99.99,0|SEP,7,1"},
		{BoardCDH, "GPS,19/06/05T12:34:56,north,east,1,2"},
		{BoardCDH, "GPS,19/06/05T12:34:56,nan,inf,1,2"},
		{BoardCDH, "GPS,19/06/05T12:34:56,-Infinity,0x1p4,1,2"},
		{BoardCDH, ""},
	}

	dec := newTestDecoder()
	for _, tt := range tests {
		t.Run(tt.board+"/"+tt.telem, func(t *testing.T) {
			first, err := dec.Decode(tt.board, tt.telem)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			line := Encode(tt.board, first)
			second, err := dec.Decode(tt.board, line)
			if err != nil {
				t.Fatalf("Decode(Encode) failed: %v", err)
			}
			if !reflect.DeepEqual(first, second) {
				t.Errorf("round trip mismatch\nline:   %s\nfirst:  %+v\nsecond: %+v", line, first, second)
			}
		})
	}
}

func TestEncode_Canonical(t *testing.T) {
	d, err := newTestDecoder().Decode(BoardEPS, "C,0|DC,171.13|DB,191.69|DA,25.72,6.93,975.00|I,66,1.67,6.58,17.00")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := Encode(BoardEPS, d); got != epsLine {
		t.Errorf("Encode = %q, want %q", got, epsLine)
	}
}

func TestParseLine(t *testing.T) {
	at := time.UnixMilli(1560000000123)
	rec, err := newTestDecoder().ParseLine("T|EPS|"+epsLine+"\r\n", at)
	if err != nil {
		t.Fatalf("ParseLine failed: %v", err)
	}
	if rec.Board != BoardEPS || rec.Type != "T" || rec.Telem != epsLine || rec.Time != 1560000000123 {
		t.Errorf("record = %+v", rec)
	}
	if rec.Line() != "T|EPS|"+epsLine {
		t.Errorf("Line() = %q", rec.Line())
	}
	if !rec.ReceivedAt().Equal(at) {
		t.Errorf("ReceivedAt = %v, want %v", rec.ReceivedAt(), at)
	}
}

func TestParseLine_Errors(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"T|EPS", ErrEmptyTelemetry},
		{"", ErrEmptyTelemetry},
		{"T|COMM|X,1", ErrUnknownBoard},
		{"DEBUG|EPS|hello", ErrNotTelemetry},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if _, err := newTestDecoder().ParseLine(tt.line, time.Now()); !errors.Is(err, tt.want) {
				t.Errorf("ParseLine(%q) error = %v, want %v", tt.line, err, tt.want)
			}
		})
	}
}

func TestRebuild(t *testing.T) {
	stale := Record{Board: BoardEPS, Telem: "C,1", Time: 5, Data: Data{DS18B20A: &DS18B20{Temp: "99"}}}

	rec, err := newTestDecoder().Rebuild(stale)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if rec.Data.DS18B20A != nil {
		t.Errorf("DS18B20_A = %+v, want nil", rec.Data.DS18B20A)
	}
	if rec.Data.Charging == nil || !*rec.Data.Charging {
		t.Errorf("CHARGING = %v, want true", rec.Data.Charging)
	}
	if rec.Type != RecordType || rec.Time != 5 {
		t.Errorf("record = %+v", rec)
	}
}
