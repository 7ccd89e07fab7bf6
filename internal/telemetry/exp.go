package telemetry

import "fmt"

// expINAName maps EXP INA addresses to thermal panels.
var expINAName = map[string]string{
	"64": "P1",
	"67": "P2",
}

// The EXP board's SPI transfer to the CDH routinely truncates the tail of
// the line, so panel 2 values are often cut short or missing. Those come
// through as nil rather than failing the record.
type expParser struct {
	data Data
	ina  map[string]int
}

func newEXPParser() *expParser {
	return &expParser{ina: make(map[string]int)}
}

func (p *expParser) token(id string, args []string) error {
	switch id {
	case "THERM_P1", "THERM_P2":
		if p.data.ThermPwr == nil {
			p.data.ThermPwr = &PanelPair{}
		}
		if id == "THERM_P1" {
			p.data.ThermPwr.P1 = optional(args)
		} else {
			p.data.ThermPwr.P2 = optional(args)
		}

	case "I":
		if err := need(id, args, 4); err != nil {
			return err
		}
		name, ok := expINAName[args[0]]
		if !ok {
			return fmt.Errorf("%w: EXP INA address %q", ErrTelemetryParse, args[0])
		}
		ina := INA{
			Name:      name,
			Address:   args[0],
			ShuntV:    args[1],
			BusV:      args[2],
			CurrentMA: args[3],
			PowerMW:   powerMW(args[2], args[3]),
		}
		if i, ok := p.ina[ina.Address]; ok {
			p.data.INA[i] = ina
			return nil
		}
		p.ina[ina.Address] = len(p.data.INA)
		p.data.INA = append(p.data.INA, ina)

	case "P1A", "P1B", "P1C", "P2A", "P2B", "P2C":
		if p.data.PanelTemp == nil {
			p.data.PanelTemp = &PanelTemps{}
		}
		*panelZone(p.data.PanelTemp, id) = optional(args)

	default:
		return unknownToken(id)
	}
	return nil
}

func (p *expParser) finish() Data {
	return p.data
}

// panelZone returns the field for a P<panel><zone> token id.
func panelZone(pt *PanelTemps, id string) **string {
	z := &pt.P1
	if id[1] == '2' {
		z = &pt.P2
	}
	switch id[2] {
	case 'A':
		return &z.A
	case 'B':
		return &z.B
	default:
		return &z.C
	}
}
