package scene

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parse reads a scene file and builds a snapshot. Only lines matching a
// recognized per-entity grammar are retained; comments and unrecognized
// lines are skipped silently. A recognized line that fails to parse adds a
// ParseWarning and parsing continues. The only error returned is a read
// failure.
func Parse(r io.Reader) (*Snapshot, error) {
	snap := NewSnapshot()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			continue
		}
		parseLine(snap, lineNo, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading scene file: %w", err)
	}
	return snap, nil
}

// ParseString parses scene text held in memory.
func ParseString(text string) *Snapshot {
	snap, _ := Parse(strings.NewReader(text))
	return snap
}

func parseLine(snap *Snapshot, lineNo int, line string) {
	tokens := splitQuoted(line)
	if len(tokens) == 0 {
		return
	}
	head := strings.Split(tokens[0], "/")
	args := tokens[1:]
	if len(head) < 3 || head[0] != "" {
		return
	}

	warn := func(reason string) {
		snap.warnings = append(snap.warnings, ParseWarning{Line: lineNo, Text: line, Reason: reason})
	}

	switch head[1] {
	case "ch", "bus":
		class := Channel
		if head[1] == "bus" {
			class = Bus
		}
		if len(head) != 4 {
			return
		}
		idx, err := strconv.Atoi(head[2])
		if err != nil || idx < 1 {
			warn("bad " + head[1] + " index " + head[2])
			return
		}
		switch head[3] {
		case "mix":
			parseMixLine(snap, class, idx, args, warn)
		case "config":
			parseConfigLine(snap, class, idx, args, warn)
		}

	case "main":
		// Only the stereo main strip is modeled.
		if len(head) != 4 || head[2] != "st" || head[3] != "mix" {
			return
		}
		parseMainMixLine(snap, args, warn)

	case "fx":
		if len(head) != 4 {
			return
		}
		idx, err := strconv.Atoi(head[2])
		if err != nil || idx < 1 {
			warn("bad fx index " + head[2])
			return
		}
		switch head[3] {
		case "config":
			if len(args) < 1 {
				warn("fx config line has no type")
				return
			}
			snap.Set(ParameterPath{FX, idx, "type"}, Text(args[0]))
		case "par":
			for i, tok := range args {
				v, err := parseLevel(tok)
				if err != nil {
					warn(fmt.Sprintf("fx par %d: %v", i+1, err))
					return
				}
				snap.Set(ParameterPath{FX, idx, fmt.Sprintf("par%02d", i+1)}, v)
			}
		}
	}
}

// parseMixLine handles channel and bus mix lines:
//
//	/ch/01/mix ON  -5.7 ON +24 OFF   -oo
//
// on flag, fader level, stereo-assign flag, pan, mono flag, mono level.
// Trailing fields may be absent in hand-edited files.
func parseMixLine(snap *Snapshot, class EntityClass, idx int, args []string, warn func(string)) {
	fields := []struct {
		name string
		flag bool
	}{
		{"on", true},
		{"fader", false},
		{"st", true},
		{"pan", false},
		{"mono", true},
		{"mlevel", false},
	}
	if len(args) < 2 {
		warn("mix line needs at least an on flag and a fader level")
		return
	}
	for i, f := range fields {
		if i >= len(args) {
			break
		}
		var v Value
		var err error
		if f.flag {
			v, err = parseFlag(args[i])
		} else {
			v, err = parseLevel(args[i])
		}
		if err != nil {
			warn(fmt.Sprintf("mix field %s: %v", f.name, err))
			return
		}
		snap.Set(ParameterPath{class, idx, f.name}, v)
	}
}

// parseConfigLine handles channel and bus config lines:
//
//	/ch/01/config "Lead Vox" 1 RD 1
//
// quoted name, icon, color, and (channels only) source.
func parseConfigLine(snap *Snapshot, class EntityClass, idx int, args []string, warn func(string)) {
	if len(args) < 1 {
		warn("config line has no name")
		return
	}
	snap.Set(ParameterPath{class, idx, "name"}, Text(args[0]))
	if len(args) > 1 {
		v, err := parseLevel(args[1])
		if err != nil {
			warn(fmt.Sprintf("config icon: %v", err))
			return
		}
		snap.Set(ParameterPath{class, idx, "icon"}, v)
	}
	if len(args) > 2 {
		snap.Set(ParameterPath{class, idx, "color"}, Text(args[2]))
	}
	if class == Channel && len(args) > 3 {
		v, err := parseLevel(args[3])
		if err != nil {
			warn(fmt.Sprintf("config source: %v", err))
			return
		}
		snap.Set(ParameterPath{class, idx, "source"}, v)
	}
}

func parseMainMixLine(snap *Snapshot, args []string, warn func(string)) {
	if len(args) < 2 {
		warn("main mix line needs at least an on flag and a fader level")
		return
	}
	on, err := parseFlag(args[0])
	if err != nil {
		warn(fmt.Sprintf("main mix on: %v", err))
		return
	}
	snap.Set(ParameterPath{Main, 1, "on"}, on)

	fader, err := parseLevel(args[1])
	if err != nil {
		warn(fmt.Sprintf("main mix fader: %v", err))
		return
	}
	snap.Set(ParameterPath{Main, 1, "fader"}, fader)

	if len(args) > 2 {
		pan, err := parseLevel(args[2])
		if err != nil {
			warn(fmt.Sprintf("main mix pan: %v", err))
			return
		}
		snap.Set(ParameterPath{Main, 1, "pan"}, pan)
	}
}

func parseFlag(tok string) (Value, error) {
	switch tok {
	case "ON":
		return Flag(true), nil
	case "OFF":
		return Flag(false), nil
	}
	return Value{}, fmt.Errorf("flag token %q is not ON/OFF", tok)
}

// parseLevel parses the console's numeric text encoding: an optional
// leading '+', or the "-oo" minus-infinity sentinel.
func parseLevel(tok string) (Value, error) {
	if tok == "-oo" {
		return MinusInfinity(), nil
	}
	f, err := strconv.ParseFloat(strings.TrimPrefix(tok, "+"), 64)
	if err != nil {
		return Value{}, fmt.Errorf("numeric token %q: %w", tok, err)
	}
	return Float64(f), nil
}

// splitQuoted splits a line on whitespace, keeping double-quoted runs
// together and stripping the quotes. Scene files do not escape quotes.
func splitQuoted(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			if inQuote {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
			inQuote = !inQuote
		case !inQuote && (r == ' ' || r == '\t'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
