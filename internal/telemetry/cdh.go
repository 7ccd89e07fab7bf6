package telemetry

import (
	"strconv"
	"strings"
	"time"
)

var gpsStatus = map[string]string{
	"1": "EST",
	"2": "Time only",
	"3": "STD",
	"4": "DGPS",
}

var separationStatus = map[string]string{
	"0": "Switch Missing",
	"1": "Separated",
	"2": "In Launch Adapter",
}

// GPSDateLayout is the display layout of GPS_DATE.
const GPSDateLayout = "2006/01/02  15:04:05"

type cdhParser struct {
	data  Data
	scale float64
}

func (p *cdhParser) token(id string, args []string) error {
	switch id {
	case "GPS":
		// GPS,<yy/mm/ddThh:mm:ss>,<lat>,<lon>,<hdop>,<alt_cm>[,<status>]
		if err := need(id, args, 5); err != nil {
			return err
		}
		p.data.GPSRaw = &GPSRaw{Date: args[0], Lat: args[1], Lon: args[2]}
		p.data.GPSDate = parseGPSDate(args[0])

		// Coordinates are fixed-point integers; anything else leaves no fix.
		p.data.GPSFix = nil
		lat, latErr := strconv.ParseInt(args[1], 10, 64)
		lon, lonErr := strconv.ParseInt(args[2], 10, 64)
		if latErr == nil && lonErr == nil {
			p.data.GPSFix = &GPSFix{Lat: float64(lat) / p.scale, Lon: float64(lon) / p.scale}
		}

		meta := &GPSMeta{HDOP: args[3], AltCM: args[4]}
		if len(args) > 5 {
			meta.StatusInt = args[5]
		}
		meta.Status = gpsStatus[meta.StatusInt]
		if meta.Status == "" {
			meta.Status = "No Fix"
		}
		p.data.GPSMeta = meta

	case "SEP":
		// SEP,<id>,<adc>,<comm>,<exp1>,<spare>
		if err := need(id, args, 1); err != nil {
			return err
		}
		val, ok := separationStatus[args[0]]
		if !ok {
			val = "Unknown"
		}
		p.data.Separation = &Separation{ID: args[0], Val: val}
		p.data.HotPlug = nil
		if len(args) >= 5 {
			p.data.HotPlug = &HotPlug{ADC: args[1], COMM: args[2], EXP1: args[3], SPARE: args[4]}
		}

	default:
		return unknownToken(id)
	}
	return nil
}

func (p *cdhParser) finish() Data {
	return p.data
}

// parseGPSDate reformats the receiver's yy/mm/ddThh:mm:ss timestamp.
// It returns nil for anything that is not a real date. Year 0 is the
// receiver's placeholder before its first fix (0/1/1T0:0:0) and is
// rejected rather than read as 2000. The receiver does not zero-pad, so
// single-digit fields are accepted.
func parseGPSDate(s string) *string {
	datePart, timePart, ok := strings.Cut(s, "T")
	if !ok {
		return nil
	}
	ymd := strings.Split(datePart, "/")
	hms := strings.Split(timePart, ":")
	if len(ymd) != 3 || len(hms) != 3 {
		return nil
	}

	var n [6]int
	for i, part := range append(ymd, hms...) {
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 {
			return nil
		}
		n[i] = v
	}
	if n[0] == 0 || n[0] > 99 {
		return nil
	}

	year := 2000 + n[0]
	t := time.Date(year, time.Month(n[1]), n[2], n[3], n[4], n[5], 0, time.UTC)
	if t.Year() != year || int(t.Month()) != n[1] || t.Day() != n[2] ||
		t.Hour() != n[3] || t.Minute() != n[4] || t.Second() != n[5] {
		return nil
	}

	out := t.Format(GPSDateLayout)
	return &out
}
