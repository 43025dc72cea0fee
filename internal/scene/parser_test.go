package scene

import (
	"strings"
	"testing"
)

const sampleScene = `#4.0# "Soundcheck" "" %000000000
/ch/01/config "Lead Vox" 1 RD 1
/ch/01/mix ON  +2.0 ON +0 OFF   -oo
/ch/02/mix OFF  -8.5 ON -24 OFF   -oo
/bus/01/config "Monitors" 54 GN
/bus/01/mix ON  -3.0 ON +0 OFF   -oo
/main/st/mix ON  0.0 +0
/fx/1/config "HALL"
/fx/1/par  0.30 0.50 0.75
# a comment line
/headamp/000 +15.5 OFF
`

func TestParseRecognizedLines(t *testing.T) {
	snap := ParseString(sampleScene)

	tests := []struct {
		path ParameterPath
		want Value
	}{
		{ParameterPath{Channel, 1, "name"}, Text("Lead Vox")},
		{ParameterPath{Channel, 1, "color"}, Text("RD")},
		{ParameterPath{Channel, 1, "icon"}, Float64(1)},
		{ParameterPath{Channel, 1, "source"}, Float64(1)},
		{ParameterPath{Channel, 1, "on"}, Flag(true)},
		{ParameterPath{Channel, 1, "fader"}, Float64(2.0)},
		{ParameterPath{Channel, 1, "pan"}, Float64(0)},
		{ParameterPath{Channel, 1, "mlevel"}, MinusInfinity()},
		{ParameterPath{Channel, 2, "on"}, Flag(false)},
		{ParameterPath{Channel, 2, "fader"}, Float64(-8.5)},
		{ParameterPath{Channel, 2, "pan"}, Float64(-24)},
		{ParameterPath{Bus, 1, "name"}, Text("Monitors")},
		{ParameterPath{Bus, 1, "fader"}, Float64(-3.0)},
		{ParameterPath{Main, 1, "on"}, Flag(true)},
		{ParameterPath{Main, 1, "fader"}, Float64(0)},
		{ParameterPath{FX, 1, "type"}, Text("HALL")},
		{ParameterPath{FX, 1, "par02"}, Float64(0.5)},
	}
	for _, tt := range tests {
		got, ok := snap.Get(tt.path)
		if !ok {
			t.Errorf("%s missing from snapshot", tt.path)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("%s = %s, want %s", tt.path, got, tt.want)
		}
	}

	if len(snap.Warnings()) != 0 {
		t.Errorf("warnings = %v, want none", snap.Warnings())
	}
}

func TestParseSkipsUnrecognizedSilently(t *testing.T) {
	snap := ParseString("/headamp/000 +15.5 OFF\n/config/routing/IN AN1-8 AN9-16\nnot a statement\n")
	if snap.Len() != 0 {
		t.Errorf("snapshot has %d params, want 0", snap.Len())
	}
	if len(snap.Warnings()) != 0 {
		t.Errorf("warnings = %v, want none", snap.Warnings())
	}
}

func TestParseMinusInfinitySentinel(t *testing.T) {
	snap := ParseString("/ch/03/mix ON -oo ON +0 OFF -oo\n")
	v, ok := snap.Get(ParameterPath{Channel, 3, "fader"})
	if !ok {
		t.Fatal("fader missing")
	}
	if v.Kind != KindMinusInf {
		t.Errorf("fader kind = %v, want KindMinusInf", v.Kind)
	}
	if !v.Equal(MinusInfinity()) {
		t.Error("MinusInfinity not equal to itself")
	}
	if v.Equal(Float64(-90)) {
		t.Error("MinusInfinity equals a finite float")
	}
}

func TestParseMalformedRecognizedLineWarns(t *testing.T) {
	snap := ParseString("/ch/01/mix ON notanumber ON +0\n/ch/02/mix MAYBE -5.0\n/ch/xx/mix ON -5.0\n")
	if got := len(snap.Warnings()); got != 3 {
		t.Fatalf("warnings = %d (%v), want 3", got, snap.Warnings())
	}
	// The on flag parsed before the bad fader token is retained.
	if _, ok := snap.Get(ParameterPath{Channel, 1, "on"}); !ok {
		t.Error("ch01 on flag lost to a later bad token")
	}
	if _, ok := snap.Get(ParameterPath{Channel, 1, "fader"}); ok {
		t.Error("ch01 fader parsed from a non-numeric token")
	}
}

func TestParseQuotedNameWithSpaces(t *testing.T) {
	snap := ParseString(`/ch/09/config "Kick In   2" 1 RD 9` + "\n")
	v, ok := snap.Get(ParameterPath{Channel, 9, "name"})
	if !ok || v.Str != "Kick In   2" {
		t.Errorf("name = %v (%v), want \"Kick In   2\"", v, ok)
	}
}

func TestParseReaderError(t *testing.T) {
	snap, err := Parse(strings.NewReader(sampleScene))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if snap.Len() == 0 {
		t.Error("empty snapshot from valid scene text")
	}
}
