package telemetry

import (
	"fmt"
	"strconv"
)

// epsINAName maps EPS INA addresses to the rail they monitor.
var epsINAName = map[string]string{
	"64": "Solar",
	"65": "Charger",
	"66": "VBatt",
	"67": "+5V",
	"73": "+3.3V",
	"68": "Radio",
	"69": "SW1-5V",
	"72": "SW1-3V",
	"70": "SW2-5V",
	"74": "SW2-3V",
	"71": "SW3-5V",
	"75": "SW3-3V",
}

// epsINACommandID maps switchable EPS rails to their PWR_ON/PWR_OFF id.
var epsINACommandID = map[string]string{
	"68": "R",
	"69": "1",
	"72": "1",
	"70": "2",
	"74": "2",
	"71": "3",
	"75": "3",
}

// EPSCommandIDs lists the switchable rail ids accepted by PWR_ON/PWR_OFF.
var EPSCommandIDs = []string{"R", "1", "2", "3"}

type epsParser struct {
	data Data
	ina  map[string]int // address -> index into data.INA
}

func newEPSParser() *epsParser {
	return &epsParser{ina: make(map[string]int)}
}

func (p *epsParser) token(id string, args []string) error {
	switch id {
	case "I":
		ina, err := parseEPSINA(args)
		if err != nil {
			return err
		}
		if i, ok := p.ina[ina.Address]; ok {
			p.data.INA[i] = ina
			return nil
		}
		p.ina[ina.Address] = len(p.data.INA)
		p.data.INA = append(p.data.INA, ina)

	case "DA":
		if err := need(id, args, 3); err != nil {
			return err
		}
		p.data.DS2438 = &DS2438{Temp: args[0], Voltage: args[1], Current: args[2]}

	case "DB":
		if err := need(id, args, 1); err != nil {
			return err
		}
		p.data.DS18B20B = &DS18B20{Temp: args[0]}

	case "DC":
		if err := need(id, args, 1); err != nil {
			return err
		}
		p.data.DS18B20A = &DS18B20{Temp: args[0]}

	case "C":
		if err := need(id, args, 1); err != nil {
			return err
		}
		var charging bool
		switch args[0] {
		case "1":
			charging = true
		case "0":
			charging = false
		default:
			return fmt.Errorf("%w: charging flag %q", ErrTelemetryParse, args[0])
		}
		p.data.Charging = &charging

	case "I_E":
		if err := need(id, args, 4); err != nil {
			return err
		}
		var vals [4]int
		for i := range vals {
			v, err := strconv.Atoi(args[i])
			if err != nil {
				return fmt.Errorf("%w: switch status %q", ErrTelemetryParse, args[i])
			}
			vals[i] = v
		}
		p.data.SwitchStatus = &SwitchStatus{R: vals[0], S1: vals[1], S2: vals[2], S3: vals[3]}

	default:
		return unknownToken(id)
	}
	return nil
}

// finish applies the switch status to the INA entries. The I_E token may
// arrive after the INA tokens it describes.
func (p *epsParser) finish() Data {
	for i := range p.data.INA {
		ina := &p.data.INA[i]
		ina.CommandID = epsINACommandID[ina.Address]
		enabled := p.data.SwitchStatus.lookup(ina.CommandID)
		ina.SwitchEnabled = &enabled
	}
	return p.data
}

// parseEPSINA accepts I,<addr>,<shuntV>,<busV>,<mA> and the older
// I,<addr>,<busV>,<mA> form.
func parseEPSINA(args []string) (INA, error) {
	var ina INA
	switch {
	case len(args) >= 4:
		ina = INA{Address: args[0], ShuntV: args[1], BusV: args[2], CurrentMA: args[3]}
	case len(args) == 3:
		ina = INA{Address: args[0], BusV: args[1], CurrentMA: args[2]}
	default:
		return INA{}, need("I", args, 4)
	}
	ina.Name = epsINAName[ina.Address]
	ina.PowerMW = powerMW(ina.BusV, ina.CurrentMA)
	return ina, nil
}

// powerMW formats bus voltage times current with two decimals, or returns
// "" when either value is not numeric.
func powerMW(busV, currentMA string) string {
	v, err := strconv.ParseFloat(busV, 64)
	if err != nil {
		return ""
	}
	i, err := strconv.ParseFloat(currentMA, 64)
	if err != nil {
		return ""
	}
	return strconv.FormatFloat(v*i, 'f', 2, 64)
}
