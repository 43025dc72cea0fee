// Package apply maps scene parameter changes to console commands and sends
// them, collecting a per-change outcome for every batch.
package apply

import (
	"fmt"

	"github.com/wjensen/x32-scene-monitor/internal/scene"
)

// rule binds one (entity class, field) pair to its protocol address
// template and value encoding. Exactly one rule exists per supported pair;
// fields without a rule are skipped, not errors.
type rule struct {
	address func(p scene.ParameterPath) string
	encode  func(v scene.Value) (interface{}, error)
}

type ruleKey struct {
	class scene.EntityClass
	field string
}

func faderArg(v scene.Value) (interface{}, error) {
	if v.Kind != scene.KindFloat && v.Kind != scene.KindMinusInf {
		return nil, fmt.Errorf("fader value %s is not a level", v)
	}
	return scene.FaderToWire(v), nil
}

func onArg(v scene.Value) (interface{}, error) {
	if v.Kind != scene.KindBool {
		return nil, fmt.Errorf("on value %s is not a flag", v)
	}
	// Wire polarity: 1 means the strip is ON (audible), 0 means muted.
	if v.Bool {
		return int32(1), nil
	}
	return int32(0), nil
}

func panArg(v scene.Value) (interface{}, error) {
	if v.Kind != scene.KindFloat {
		return nil, fmt.Errorf("pan value %s is not numeric", v)
	}
	return scene.PanToWire(v), nil
}

func stringArg(v scene.Value) (interface{}, error) {
	if v.Kind != scene.KindString {
		return nil, fmt.Errorf("value %s is not a string", v)
	}
	return v.Str, nil
}

func floatArg(v scene.Value) (interface{}, error) {
	switch v.Kind {
	case scene.KindFloat:
		return float32(v.Float), nil
	case scene.KindMinusInf:
		return float32(0), nil
	}
	return nil, fmt.Errorf("value %s is not numeric", v)
}

func stripAddress(format string) func(scene.ParameterPath) string {
	return func(p scene.ParameterPath) string {
		return fmt.Sprintf(format, p.Index)
	}
}

func fixedAddress(addr string) func(scene.ParameterPath) string {
	return func(scene.ParameterPath) string { return addr }
}

// fxParAddress turns field "parNN" into /fx/N/par/NN.
func fxParAddress(p scene.ParameterPath) string {
	return fmt.Sprintf("/fx/%d/par/%s", p.Index, p.Field[len("par"):])
}

var rules = map[ruleKey]rule{
	{scene.Channel, "fader"}: {stripAddress("/ch/%02d/mix/fader"), faderArg},
	{scene.Channel, "on"}:    {stripAddress("/ch/%02d/mix/on"), onArg},
	{scene.Channel, "pan"}:   {stripAddress("/ch/%02d/mix/pan"), panArg},
	{scene.Channel, "name"}:  {stripAddress("/ch/%02d/config/name"), stringArg},

	{scene.Bus, "fader"}: {stripAddress("/bus/%02d/mix/fader"), faderArg},
	{scene.Bus, "on"}:    {stripAddress("/bus/%02d/mix/on"), onArg},
	{scene.Bus, "name"}:  {stripAddress("/bus/%02d/config/name"), stringArg},

	{scene.Main, "fader"}: {fixedAddress("/main/st/mix/fader"), faderArg},
	{scene.Main, "on"}:    {fixedAddress("/main/st/mix/on"), onArg},

	{scene.FX, "type"}: {func(p scene.ParameterPath) string {
		return fmt.Sprintf("/fx/%d/config/type", p.Index)
	}, stringArg},
}

// lookupRule finds the rule for a change's path. FX parameter fields are
// matched by their "parNN" shape rather than a table entry per index.
func lookupRule(p scene.ParameterPath) (rule, bool) {
	if r, ok := rules[ruleKey{p.Class, p.Field}]; ok {
		return r, true
	}
	if p.Class == scene.FX && len(p.Field) > 3 && p.Field[:3] == "par" {
		return rule{address: fxParAddress, encode: floatArg}, true
	}
	return rule{}, false
}
