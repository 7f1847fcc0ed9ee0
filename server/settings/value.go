package settings

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

type ValueKind string

const (
	KindToggle     ValueKind = "toggle"
	KindNavigation ValueKind = "navigation"
)

// Value is either a toggle holding a boolean or a navigation entry
// pointing at another screen.
type Value struct {
	Kind    ValueKind
	Enabled bool
	Target  string
}

func Toggle(enabled bool) Value { return Value{Kind: KindToggle, Enabled: enabled} }

func Navigation(target string) Value { return Value{Kind: KindNavigation, Target: target} }

// toggles are plain booleans, navigation entries a single key mapping
//
//	enhanced_audio: true
//	theme: {navigate: theme}
func (v Value) MarshalYAML() (any, error) {
	switch v.Kind {
	case KindToggle:
		return v.Enabled, nil
	case KindNavigation:
		return map[string]string{"navigate": v.Target}, nil
	default:
		return nil, fmt.Errorf("unknown setting kind %q", v.Kind)
	}
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var b bool
		if err := node.Decode(&b); err != nil {
			return fmt.Errorf("line %d: toggle must be a boolean", node.Line)
		}
		*v = Toggle(b)
		return nil
	case yaml.MappingNode:
		var m struct {
			Navigate string `yaml:"navigate"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		if m.Navigate == "" {
			return fmt.Errorf("line %d: navigation without target", node.Line)
		}
		*v = Navigation(m.Navigate)
		return nil
	default:
		return fmt.Errorf("line %d: unsupported setting value", node.Line)
	}
}

type jsonValue struct {
	Type   ValueKind `json:"type"`
	Value  *bool     `json:"value,omitempty"`
	Target string    `json:"target,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	j := jsonValue{Type: v.Kind, Target: v.Target}
	if v.Kind == KindToggle {
		j.Value = &v.Enabled
	}
	return json.Marshal(j)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var j jsonValue
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}

	switch j.Type {
	case KindToggle:
		if j.Value == nil {
			return errors.New("toggle without value")
		}
		*v = Toggle(*j.Value)
	case KindNavigation:
		*v = Navigation(j.Target)
	default:
		return fmt.Errorf("unknown setting kind %q", j.Type)
	}
	return nil
}
