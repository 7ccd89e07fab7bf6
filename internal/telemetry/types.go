package telemetry

import (
	"errors"
	"time"
)

// Errors
var (
	ErrUnknownBoard   = errors.New("unknown board")
	ErrEmptyTelemetry = errors.New("empty telemetry")
	ErrTelemetryParse = errors.New("telemetry parse error")
	ErrNotTelemetry   = errors.New("not a telemetry line")
)

// Board identifiers.
const (
	BoardEPS = "EPS" // power
	BoardADC = "ADC" // attitude determination and control
	BoardEXP = "EXP" // experiment payload
	BoardCDH = "CDH" // command and data handling
)

// Boards lists every board in display order.
var Boards = []string{BoardCDH, BoardEPS, BoardADC, BoardEXP}

// KnownBoard reports whether b is a board identifier.
func KnownBoard(b string) bool {
	switch b {
	case BoardEPS, BoardADC, BoardEXP, BoardCDH:
		return true
	}
	return false
}

// RecordType is the only record type boards emit.
const RecordType = "T"

// Record is one telemetry packet from one board.
type Record struct {
	Board string `json:"board"`
	Type  string `json:"type"`
	Telem string `json:"telem"` // raw tokens after the "T|<board>|" prefix
	Time  int64  `json:"time"`  // receive time, epoch milliseconds
	Data  Data   `json:"data"`
}

// ReceivedAt returns the record time as a time.Time.
func (r Record) ReceivedAt() time.Time {
	return time.UnixMilli(r.Time)
}

// Line reassembles the telemetry line as sent by the board.
func (r Record) Line() string {
	typ := r.Type
	if typ == "" {
		typ = RecordType
	}
	return typ + "|" + r.Board + "|" + r.Telem
}

// Data is the structured decode of a telemetry line. Only the fields of the
// record's board are populated; absent fields are omitted from JSON.
type Data struct {
	// EPS and EXP
	INA []INA `json:"INA,omitempty"`

	// EPS
	DS2438       *DS2438       `json:"DS2438,omitempty"`
	DS18B20A     *DS18B20      `json:"DS18B20_A,omitempty"`
	DS18B20B     *DS18B20      `json:"DS18B20_B,omitempty"`
	Charging     *bool         `json:"CHARGING,omitempty"`
	SwitchStatus *SwitchStatus `json:"SWITCH_STATUS,omitempty"`

	// ADC
	SunSensors *SunSensors `json:"SUN_SENSORS,omitempty"`
	SunDir     *string     `json:"SUN_DIR,omitempty"`
	MagnoTorq  *MagnoTorq  `json:"MAGNO_TORQ,omitempty"`
	ReactWheel *string     `json:"REACT_WHEEL,omitempty"`
	MPUAcc     *Vector     `json:"MPU_ACC,omitempty"`
	MPUGyr     *Vector     `json:"MPU_GYR,omitempty"`
	MPUMag     *Vector     `json:"MPU_MAG,omitempty"`

	// EXP
	ThermPwr  *PanelPair  `json:"THERM_PWR,omitempty"`
	PanelTemp *PanelTemps `json:"PANEL_TEMP,omitempty"`

	// CDH
	GPSDate    *string     `json:"GPS_DATE,omitempty"`
	GPSFix     *GPSFix     `json:"GPS_FIX,omitempty"`
	GPSRaw     *GPSRaw     `json:"GPS_RAW,omitempty"`
	GPSMeta    *GPSMeta    `json:"GPS_META,omitempty"`
	Separation *Separation `json:"SEPARATION,omitempty"`
	HotPlug    *HotPlug    `json:"HOT_PLUG,omitempty"`
}

// IsEmpty reports whether nothing was decoded.
func (d Data) IsEmpty() bool {
	return len(d.INA) == 0 &&
		d.DS2438 == nil && d.DS18B20A == nil && d.DS18B20B == nil &&
		d.Charging == nil && d.SwitchStatus == nil &&
		d.SunSensors == nil && d.SunDir == nil && d.MagnoTorq == nil &&
		d.ReactWheel == nil && d.MPUAcc == nil && d.MPUGyr == nil && d.MPUMag == nil &&
		d.ThermPwr == nil && d.PanelTemp == nil &&
		d.GPSDate == nil && d.GPSFix == nil && d.GPSRaw == nil && d.GPSMeta == nil &&
		d.Separation == nil && d.HotPlug == nil
}

// INA is a current/voltage sensor reading.
type INA struct {
	Name          string `json:"name,omitempty"`
	Address       string `json:"address"`
	ShuntV        string `json:"shunt_V,omitempty"`
	BusV          string `json:"bus_V"`
	CurrentMA     string `json:"current_mA"`
	PowerMW       string `json:"power_mW,omitempty"`
	SwitchEnabled *int   `json:"switch_enabled,omitempty"` // EPS only
	CommandID     string `json:"command_id,omitempty"`     // EPS only
}

// DS2438 is the battery monitor.
type DS2438 struct {
	Temp    string `json:"temp"`
	Voltage string `json:"voltage"`
	Current string `json:"current"`
}

// DS18B20 is a battery temperature sensor.
type DS18B20 struct {
	Temp string `json:"temp"`
}

// SwitchStatus holds the EPS switchable rail states from the I_E token.
type SwitchStatus struct {
	R  int `json:"R"`
	S1 int `json:"1"`
	S2 int `json:"2"`
	S3 int `json:"3"`
}

// lookup returns the state for an EPS command id, defaulting to enabled.
func (s *SwitchStatus) lookup(id string) int {
	if s == nil {
		return 1
	}
	switch id {
	case "R":
		return s.R
	case "1":
		return s.S1
	case "2":
		return s.S2
	case "3":
		return s.S3
	}
	return 1
}

// SunSensors is the sun sensor quad.
type SunSensors struct {
	Front string `json:"FRONT"`
	Right string `json:"RIGHT"`
	Back  string `json:"BACK"`
	Left  string `json:"LEFT"`
}

// MagnoTorq holds the raw magnetorquer coil states and the per-axis sign
// derived from them (+1, 0 or -1).
type MagnoTorq struct {
	XP string `json:"X_P"`
	XN string `json:"X_N"`
	YP string `json:"Y_P"`
	YN string `json:"Y_N"`
	X  int    `json:"X"`
	Y  int    `json:"Y"`
}

// Vector is an MPU triple.
type Vector struct {
	X string `json:"X"`
	Y string `json:"Y"`
	Z string `json:"Z"`
}

// PanelPair holds one value per thermal panel. Nil means missing or truncated.
type PanelPair struct {
	P1 *string `json:"P1"`
	P2 *string `json:"P2"`
}

// PanelZones holds the three temperature sensors of a thermal panel.
type PanelZones struct {
	A *string `json:"A"`
	B *string `json:"B"`
	C *string `json:"C"`
}

// PanelTemps holds both thermal panels.
type PanelTemps struct {
	P1 PanelZones `json:"P1"`
	P2 PanelZones `json:"P2"`
}

// GPSFix is a position in decimal degrees.
type GPSFix struct {
	Lat float64 `json:"LAT"`
	Lon float64 `json:"LON"`
}

// GPSRaw keeps the GPS fields exactly as the board sent them.
type GPSRaw struct {
	Date string `json:"DATE"`
	Lat  string `json:"LAT"`
	Lon  string `json:"LON"`
}

// GPSMeta is GPS fix quality information.
type GPSMeta struct {
	HDOP      string `json:"HDOP"`
	AltCM     string `json:"ALT_CM"`
	StatusInt string `json:"STATUS_INT,omitempty"`
	Status    string `json:"STATUS"`
}

// Separation is the launch adapter separation switch.
type Separation struct {
	ID  string `json:"ID"`
	Val string `json:"VAL"`
}

// HotPlug reports which boards are plugged into the CDH.
type HotPlug struct {
	ADC   string `json:"ADC"`
	COMM  string `json:"COMM"`
	EXP1  string `json:"EXP1"`
	SPARE string `json:"SPARE"`
}
