package pixelcmd

import "encoding/binary"

// Display opcodes. Every payload starts with a 2-byte little-endian total
// length followed by opcode and mode bytes; the mode byte disambiguates
// variants that share an opcode (e.g. brightness vs fun mode).
const (
	opScreen       = 0x02
	opSpeed        = 0x03
	opDevice       = 0x04
	opDraw         = 0x05
	opClock        = 0x06
	opPower        = 0x07
	opText         = 0x08
	opAnimation    = 0x09
	modeFun        = 0x01
	modeBrightness = 0x80
	modeRotate     = 0x80
)

// packet builds a length-prefixed command payload: uint16 LE total length,
// opcode, mode, then arguments.
func packet(op, mode byte, args ...byte) []byte {
	total := 4 + len(args)
	p := make([]byte, 4, total)
	binary.LittleEndian.PutUint16(p[0:2], uint16(total))
	p[2] = op
	p[3] = mode
	return append(p, args...)
}

func newClear() *Command {
	return &Command{
		Name: "clear",
		encode: func(Args) []byte {
			return packet(opDraw, 0x00)
		},
	}
}

func newSetBrightness() *Command {
	return &Command{
		Name: "set_brightness",
		Params: []Param{
			{Name: "level", Kind: Int, Required: true, Min: 5, Max: 100},
		},
		encode: func(a Args) []byte {
			return packet(opDevice, modeBrightness, byte(a.Int("level")))
		},
	}
}

func newSetClockMode() *Command {
	return &Command{
		Name: "set_clock_mode",
		Params: []Param{
			{Name: "mode", Kind: Int, Required: true, Min: 0, Max: 7},
			{Name: "show_date", Kind: Bool, Default: "false"},
			{Name: "hour24", Kind: Bool, Default: "true"},
			{Name: "color", Kind: Color, Default: "FFFFFF"},
		},
		encode: func(a Args) []byte {
			style := byte(a.Int("mode"))
			if a.Bool("show_date") {
				style |= 0x80
			}
			if a.Bool("hour24") {
				style |= 0x40
			}
			c := a.Color("color")
			return packet(opClock, 0x01, style, c.R, c.G, c.B)
		},
	}
}

func newSetFunMode() *Command {
	return &Command{
		Name: "set_fun_mode",
		Params: []Param{
			{Name: "enabled", Kind: Bool, Required: true},
		},
		encode: func(a Args) []byte {
			return packet(opDevice, modeFun, boolByte(a.Bool("enabled")))
		},
	}
}

func newSetPixel() *Command {
	return &Command{
		Name: "set_pixel",
		Params: []Param{
			{Name: "x", Kind: Int, Required: true, Min: 0, Max: 63},
			{Name: "y", Kind: Int, Required: true, Min: 0, Max: 63},
			{Name: "color", Kind: Color, Required: true},
		},
		encode: func(a Args) []byte {
			c := a.Color("color")
			return packet(opDraw, 0x01, 0x00, c.R, c.G, c.B, byte(a.Int("x")), byte(a.Int("y")))
		},
	}
}

func newDeleteScreen() *Command {
	return &Command{
		Name: "delete_screen",
		Params: []Param{
			{Name: "screen", Kind: Int, Required: true, Min: 0, Max: 15},
		},
		encode: func(a Args) []byte {
			return packet(opScreen, 0x02, byte(a.Int("screen")))
		},
	}
}

func newSendText() *Command {
	return &Command{
		Name: "send_text",
		Params: []Param{
			{Name: "text", Kind: String, Required: true},
			{Name: "color", Kind: Color, Default: "FFFFFF"},
			{Name: "speed", Kind: Int, Default: "50", Min: 0, Max: 100},
		},
		encode: func(a Args) []byte {
			text := []byte(a.String("text"))
			c := a.Color("color")
			args := make([]byte, 0, 6+len(text))
			args = append(args, byte(a.Int("speed")), c.R, c.G, c.B)
			var textLen [2]byte
			binary.LittleEndian.PutUint16(textLen[:], uint16(len(text)))
			args = append(args, textLen[:]...)
			args = append(args, text...)
			return packet(opText, 0x01, args...)
		},
	}
}

func newSetScreen() *Command {
	return &Command{
		Name: "set_screen",
		Params: []Param{
			{Name: "on", Kind: Bool, Required: true},
		},
		encode: func(a Args) []byte {
			return packet(opPower, 0x01, boolByte(a.Bool("on")))
		},
	}
}

func newSetSpeed() *Command {
	return &Command{
		Name: "set_speed",
		Params: []Param{
			{Name: "speed", Kind: Int, Required: true, Min: 0, Max: 100},
		},
		encode: func(a Args) []byte {
			return packet(opSpeed, 0x01, byte(a.Int("speed")))
		},
	}
}

func newSendAnimation() *Command {
	return &Command{
		Name: "send_animation",
		Params: []Param{
			{Name: "animation", Kind: Int, Required: true, Min: 0, Max: 31},
			{Name: "speed", Kind: Int, Default: "50", Min: 0, Max: 100},
		},
		encode: func(a Args) []byte {
			return packet(opAnimation, 0x01, byte(a.Int("animation")), byte(a.Int("speed")))
		},
	}
}

func newSetOrientation() *Command {
	return &Command{
		Name: "set_orientation",
		Params: []Param{
			{Name: "orientation", Kind: Int, Required: true, Min: 0, Max: 3},
		},
		encode: func(a Args) []byte {
			return packet(opClock, modeRotate, byte(a.Int("orientation")))
		},
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
