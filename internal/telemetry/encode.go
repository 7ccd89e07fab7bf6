package telemetry

import (
	"strconv"
	"strings"
)

// Encode renders the fields of d that belong to board as a canonical token
// line. Decoding the result yields d again for any d produced by Decode.
func Encode(board string, d Data) string {
	var e encoder

	switch board {
	case BoardEPS:
		for _, ina := range d.INA {
			if ina.ShuntV != "" {
				e.add("I", ina.Address, ina.ShuntV, ina.BusV, ina.CurrentMA)
			} else {
				e.add("I", ina.Address, ina.BusV, ina.CurrentMA)
			}
		}
		if d.DS2438 != nil {
			e.add("DA", d.DS2438.Temp, d.DS2438.Voltage, d.DS2438.Current)
		}
		if d.DS18B20B != nil {
			e.add("DB", d.DS18B20B.Temp)
		}
		if d.DS18B20A != nil {
			e.add("DC", d.DS18B20A.Temp)
		}
		if d.Charging != nil {
			if *d.Charging {
				e.add("C", "1")
			} else {
				e.add("C", "0")
			}
		}
		if s := d.SwitchStatus; s != nil {
			e.add("I_E", strconv.Itoa(s.R), strconv.Itoa(s.S1), strconv.Itoa(s.S2), strconv.Itoa(s.S3))
		}

	case BoardADC:
		if s := d.SunSensors; s != nil {
			e.add("SOL", s.Front, s.Right, s.Back, s.Left)
		}
		if d.SunDir != nil {
			e.add("ANG", *d.SunDir)
		}
		if m := d.MagnoTorq; m != nil {
			e.add("MAG", m.XP, m.XN, m.YP, m.YN)
		}
		if d.ReactWheel != nil {
			e.add("WHL", *d.ReactWheel)
		}
		for _, mpu := range []struct {
			fn  string
			vec *Vector
		}{{"ACC", d.MPUAcc}, {"GYR", d.MPUGyr}, {"MAG", d.MPUMag}} {
			if mpu.vec != nil {
				e.add("MPU", mpu.fn, mpu.vec.X, mpu.vec.Y, mpu.vec.Z)
			}
		}

	case BoardEXP:
		if t := d.ThermPwr; t != nil {
			e.optional("THERM_P1", t.P1)
			e.optional("THERM_P2", t.P2)
		}
		for _, ina := range d.INA {
			e.add("I", ina.Address, ina.ShuntV, ina.BusV, ina.CurrentMA)
		}
		if pt := d.PanelTemp; pt != nil {
			e.optional("P1A", pt.P1.A)
			e.optional("P1B", pt.P1.B)
			e.optional("P1C", pt.P1.C)
			e.optional("P2A", pt.P2.A)
			e.optional("P2B", pt.P2.B)
			e.optional("P2C", pt.P2.C)
		}

	case BoardCDH:
		if raw, meta := d.GPSRaw, d.GPSMeta; raw != nil && meta != nil {
			fields := []string{raw.Date, raw.Lat, raw.Lon, meta.HDOP, meta.AltCM}
			if meta.StatusInt != "" {
				fields = append(fields, meta.StatusInt)
			}
			e.add("GPS", fields...)
		}
		if sep := d.Separation; sep != nil {
			if hp := d.HotPlug; hp != nil {
				e.add("SEP", sep.ID, hp.ADC, hp.COMM, hp.EXP1, hp.SPARE)
			} else {
				e.add("SEP", sep.ID)
			}
		}
	}

	return strings.Join(e.tokens, "|")
}

type encoder struct {
	tokens []string
}

func (e *encoder) add(id string, fields ...string) {
	e.tokens = append(e.tokens, id+","+strings.Join(fields, ","))
}

// optional writes a bare id for a nil value so the field stays present.
func (e *encoder) optional(id string, v *string) {
	if v == nil {
		e.tokens = append(e.tokens, id)
		return
	}
	e.add(id, *v)
}
