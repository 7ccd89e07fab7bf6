package monitor

import (
	"fmt"
	"strings"

	"github.com/educube/groundstation/internal/telemetry"
)

// Summary is a one-line digest of the decoded fields of rec. Records with
// nothing decoded fall back to the raw telemetry.
func Summary(rec telemetry.Record) string {
	d := rec.Data
	var parts []string

	switch rec.Board {
	case telemetry.BoardCDH:
		if d.GPSFix != nil {
			parts = append(parts, fmt.Sprintf("GPS %.5f,%.5f", d.GPSFix.Lat, d.GPSFix.Lon))
		}
		if d.GPSMeta != nil {
			parts = append(parts, fmt.Sprintf("%s HDOP %s ALT %scm", d.GPSMeta.Status, d.GPSMeta.HDOP, d.GPSMeta.AltCM))
		}
		if d.Separation != nil {
			parts = append(parts, "SEP "+d.Separation.Val)
		}
		if d.HotPlug != nil {
			h := d.HotPlug
			parts = append(parts, fmt.Sprintf("HOT ADC:%s COMM:%s EXP1:%s", h.ADC, h.COMM, h.EXP1))
		}

	case telemetry.BoardEPS:
		if d.DS2438 != nil {
			parts = append(parts, fmt.Sprintf("BATT %sV %smA %sC", d.DS2438.Voltage, d.DS2438.Current, d.DS2438.Temp))
		}
		if d.Charging != nil {
			if *d.Charging {
				parts = append(parts, "CHARGING")
			} else {
				parts = append(parts, "DISCHARGING")
			}
		}
		if s := d.SwitchStatus; s != nil {
			parts = append(parts, fmt.Sprintf("RAILS R:%d 1:%d 2:%d 3:%d", s.R, s.S1, s.S2, s.S3))
		}
		parts = append(parts, inaSummary(d.INA)...)

	case telemetry.BoardADC:
		if s := d.SunSensors; s != nil {
			parts = append(parts, fmt.Sprintf("SUN %s/%s/%s/%s", s.Front, s.Right, s.Back, s.Left))
		}
		if d.SunDir != nil {
			parts = append(parts, "ANG "+*d.SunDir)
		}
		if d.ReactWheel != nil {
			parts = append(parts, "WHL "+*d.ReactWheel)
		}
		if m := d.MagnoTorq; m != nil {
			parts = append(parts, fmt.Sprintf("MAG X%+d Y%+d", m.X, m.Y))
		}
		if v := d.MPUAcc; v != nil {
			parts = append(parts, fmt.Sprintf("ACC %s,%s,%s", v.X, v.Y, v.Z))
		}

	case telemetry.BoardEXP:
		if p := d.ThermPwr; p != nil {
			parts = append(parts, fmt.Sprintf("HEAT P1:%s P2:%s", deref(p.P1), deref(p.P2)))
		}
		if p := d.PanelTemp; p != nil {
			parts = append(parts,
				fmt.Sprintf("P1 %s/%s/%s", deref(p.P1.A), deref(p.P1.B), deref(p.P1.C)),
				fmt.Sprintf("P2 %s/%s/%s", deref(p.P2.A), deref(p.P2.B), deref(p.P2.C)),
			)
		}
		parts = append(parts, inaSummary(d.INA)...)
	}

	if len(parts) == 0 {
		return rec.Telem
	}
	return strings.Join(parts, "  ")
}

func inaSummary(inas []telemetry.INA) []string {
	out := make([]string, 0, len(inas))
	for _, ina := range inas {
		name := ina.Name
		if name == "" {
			name = ina.Address
		}
		out = append(out, fmt.Sprintf("%s %sV %smA", name, ina.BusV, ina.CurrentMA))
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
