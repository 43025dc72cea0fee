package scene

// DBToFader maps a scene-file fader level in dB to the console's normalized
// 0.0–1.0 wire range using the X32 fader law. The law is piecewise linear
// with unity gain (0 dB) at 0.75 and +10 dB at full scale.
func DBToFader(db float64) float32 {
	var f float64
	switch {
	case db < -60:
		f = (db + 90) / 480
	case db < -30:
		f = (db + 70) / 160
	case db < -10:
		f = (db + 50) / 80
	default:
		f = (db + 30) / 40
	}
	return float32(clamp01(f))
}

// FaderToWire converts a parsed fader value to the wire float. The "-oo"
// sentinel is fully attenuated.
func FaderToWire(v Value) float32 {
	if v.Kind == KindMinusInf {
		return 0
	}
	return DBToFader(v.Float)
}

// PanToWire maps the scene file's -100..+100 pan text to the wire's
// -1.0..1.0 range.
func PanToWire(v Value) float32 {
	if v.Kind == KindMinusInf {
		return -1
	}
	p := v.Float / 100
	if p < -1 {
		p = -1
	} else if p > 1 {
		p = 1
	}
	return float32(p)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
