package telemetry

import (
	"fmt"
	"strconv"
)

type adcParser struct {
	data Data
}

func (p *adcParser) token(id string, args []string) error {
	switch id {
	case "SOL":
		if err := need(id, args, 4); err != nil {
			return err
		}
		p.data.SunSensors = &SunSensors{Front: args[0], Right: args[1], Back: args[2], Left: args[3]}

	case "ANG":
		// Sun angle. The reaction wheel reports through WHL.
		if err := need(id, args, 1); err != nil {
			return err
		}
		v := args[0]
		p.data.SunDir = &v

	case "MAG":
		if err := need(id, args, 4); err != nil {
			return err
		}
		var coils [4]int
		for i := range coils {
			c, err := strconv.Atoi(args[i])
			if err != nil {
				return fmt.Errorf("%w: magnetorquer state %q", ErrTelemetryParse, args[i])
			}
			coils[i] = c
		}
		p.data.MagnoTorq = &MagnoTorq{
			XP: args[0], XN: args[1], YP: args[2], YN: args[3],
			X: torquerSign(coils[0], coils[1]),
			Y: torquerSign(coils[2], coils[3]),
		}

	case "WHL":
		if err := need(id, args, 1); err != nil {
			return err
		}
		v := args[0]
		p.data.ReactWheel = &v

	case "MPU":
		if err := need(id, args, 4); err != nil {
			return err
		}
		vec := &Vector{X: args[1], Y: args[2], Z: args[3]}
		switch args[0] {
		case "ACC":
			p.data.MPUAcc = vec
		case "GYR":
			p.data.MPUGyr = vec
		case "MAG":
			p.data.MPUMag = vec
		default:
			return fmt.Errorf("%w: MPU function %q", ErrTelemetryParse, args[0])
		}

	default:
		return unknownToken(id)
	}
	return nil
}

func (p *adcParser) finish() Data {
	return p.data
}

// torquerSign reduces a coil pair to +1, -1 or 0.
func torquerSign(pos, neg int) int {
	switch {
	case pos != 0 && neg == 0:
		return 1
	case neg != 0 && pos == 0:
		return -1
	}
	return 0
}
