// Package pixelcmd encodes pixel-display commands into the device's binary
// wire format. Each command declares its parameter schema up front so
// argument validation happens before any bytes are built; the bridge only
// needs the name → encode contract.
package pixelcmd

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the declared type of a command parameter
type Kind int

const (
	String Kind = iota
	Int
	Bool
	Color
)

// Param describes one parameter of a command. Positional arguments fill
// params in declaration order; keyword arguments address them by name.
type Param struct {
	Name     string
	Kind     Kind
	Required bool
	Default  string // used when not Required and not supplied
	Min, Max int    // bounds for Int params
}

// ArgumentError reports invalid arguments for an otherwise valid command.
// It is a normal outcome: the dispatcher converts it to an error result and
// never touches the device.
type ArgumentError struct {
	Command string
	Msg     string
}

func (e *ArgumentError) Error() string {
	if e.Command == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Command, e.Msg)
}

// RGB is a parsed color value
type RGB struct {
	R, G, B byte
}

// Args holds bound, validated parameter values for one invocation.
type Args struct {
	vals map[string]any
}

func (a Args) String(name string) string { return a.vals[name].(string) }
func (a Args) Int(name string) int       { return a.vals[name].(int) }
func (a Args) Bool(name string) bool     { return a.vals[name].(bool) }
func (a Args) Color(name string) RGB     { return a.vals[name].(RGB) }

// Command is one encodable display command: a name, a parameter schema and
// the payload builder. Values are immutable after construction.
type Command struct {
	Name   string
	Params []Param
	encode func(Args) []byte
}

// Encode binds positional and keyword arguments against the schema,
// validates them and builds the device payload. Any binding or validation
// failure is returned as an *ArgumentError.
func (c *Command) Encode(positional []string, keyword map[string]string) ([]byte, error) {
	if len(positional) > len(c.Params) {
		return nil, &ArgumentError{
			Command: c.Name,
			Msg:     fmt.Sprintf("takes at most %d arguments, got %d", len(c.Params), len(positional)),
		}
	}

	raw := make(map[string]string, len(c.Params))
	for i, val := range positional {
		raw[c.Params[i].Name] = val
	}
	for key, val := range keyword {
		p := c.paramByName(key)
		if p == nil {
			return nil, &ArgumentError{Command: c.Name, Msg: fmt.Sprintf("unknown argument %q", key)}
		}
		if _, dup := raw[key]; dup {
			return nil, &ArgumentError{Command: c.Name, Msg: fmt.Sprintf("argument %q given twice", key)}
		}
		raw[key] = val
	}

	vals := make(map[string]any, len(c.Params))
	for _, p := range c.Params {
		str, ok := raw[p.Name]
		if !ok {
			if p.Required {
				return nil, &ArgumentError{Command: c.Name, Msg: fmt.Sprintf("missing required argument %q", p.Name)}
			}
			str = p.Default
		}
		val, err := parseValue(p, str)
		if err != nil {
			return nil, &ArgumentError{Command: c.Name, Msg: err.Error()}
		}
		vals[p.Name] = val
	}

	return c.encode(Args{vals: vals}), nil
}

func (c *Command) paramByName(name string) *Param {
	for i := range c.Params {
		if c.Params[i].Name == name {
			return &c.Params[i]
		}
	}
	return nil
}

func parseValue(p Param, str string) (any, error) {
	switch p.Kind {
	case String:
		return str, nil
	case Int:
		n, err := strconv.Atoi(str)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q for %q: not an integer", str, p.Name)
		}
		if n < p.Min || n > p.Max {
			return nil, fmt.Errorf("invalid value %q for %q: must be between %d and %d", str, p.Name, p.Min, p.Max)
		}
		return n, nil
	case Bool:
		switch strings.ToLower(str) {
		case "on":
			return true, nil
		case "off":
			return false, nil
		}
		b, err := strconv.ParseBool(str)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q for %q: not a boolean", str, p.Name)
		}
		return b, nil
	case Color:
		return parseColor(p.Name, str)
	default:
		return nil, fmt.Errorf("unsupported kind for %q", p.Name)
	}
}

// parseColor accepts an RRGGBB hex triplet, with or without a leading '#'.
func parseColor(name, str string) (RGB, error) {
	cleaned := strings.TrimPrefix(str, "#")
	raw, err := hex.DecodeString(cleaned)
	if err != nil || len(raw) != 3 {
		return RGB{}, fmt.Errorf("invalid value %q for %q: expected RRGGBB hex color", str, name)
	}
	return RGB{R: raw[0], G: raw[1], B: raw[2]}, nil
}
