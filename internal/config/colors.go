package config

import (
	"fmt"

	"github.com/derailed/tcell/v2"
)

// Color represents a color in the application
type Color string

const (
	// DefaultColor represents a default color
	DefaultColor Color = "default"

	// TransparentColor represents the terminal bg color
	TransparentColor Color = "-"
)

// NewColor returns a new color
func NewColor(c string) Color {
	return Color(c)
}

// String returns color as a tview tag value
func (c Color) String() string {
	if c.isHex() {
		return string(c)
	}
	if c == DefaultColor || c == TransparentColor || c == "" {
		return "-"
	}
	col := c.Color().TrueColor().Hex()
	if col < 0 {
		return "-"
	}
	return fmt.Sprintf("#%06x", col)
}

func (c Color) isHex() bool {
	return len(c) == 7 && c[0] == '#'
}

// Color returns a view color
func (c Color) Color() tcell.Color {
	if c == DefaultColor || c == TransparentColor || c == "" {
		return tcell.ColorDefault
	}
	return tcell.GetColor(string(c)).TrueColor()
}

// BodyColors defines the base colors of every pane
type BodyColors struct {
	FgColor Color `yaml:"fgColor"`
	BgColor Color `yaml:"bgColor"`
}

// FrameColors defines colors for pane borders and titles
type FrameColors struct {
	BorderColor Color `yaml:"borderColor"`
	FocusColor  Color `yaml:"focusColor"`
	TitleColor  Color `yaml:"titleColor"`
}

// ListColors defines colors for message list rows
type ListColors struct {
	UnreadColor    Color `yaml:"unreadColor"`
	ReadColor      Color `yaml:"readColor"`
	ScheduledColor Color `yaml:"scheduledColor"`
	SentinelColor  Color `yaml:"sentinelColor"`
	SelectedBg     Color `yaml:"selectedBg"`
}

// StatusColors defines colors for the status bar
type StatusColors struct {
	FgColor    Color `yaml:"fgColor"`
	ErrorColor Color `yaml:"errorColor"`
	BusyColor  Color `yaml:"busyColor"`
}

// ColorsConfig defines the complete color configuration
type ColorsConfig struct {
	Body   BodyColors   `yaml:"body"`
	Frame  FrameColors  `yaml:"frame"`
	List   ListColors   `yaml:"list"`
	Status StatusColors `yaml:"status"`
}

// DefaultColors returns the default color configuration
func DefaultColors() *ColorsConfig {
	return &ColorsConfig{
		Body: BodyColors{
			FgColor: NewColor("#f8f8f2"),
			BgColor: NewColor("#282a36"),
		},
		Frame: FrameColors{
			BorderColor: NewColor("#44475a"),
			FocusColor:  NewColor("#6272a4"),
			TitleColor:  NewColor("#f8f8f2"),
		},
		List: ListColors{
			UnreadColor:    NewColor("#ffb86c"),
			ReadColor:      NewColor("#6272a4"),
			ScheduledColor: NewColor("#8be9fd"),
			SentinelColor:  NewColor("#50fa7b"),
			SelectedBg:     NewColor("#44475a"),
		},
		Status: StatusColors{
			FgColor:    NewColor("#f8f8f2"),
			ErrorColor: NewColor("#ff5555"),
			BusyColor:  NewColor("#f1fa8c"),
		},
	}
}

// merge fills every empty color of c from def
func (c *ColorsConfig) merge(def *ColorsConfig) {
	fill := func(dst *Color, src Color) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&c.Body.FgColor, def.Body.FgColor)
	fill(&c.Body.BgColor, def.Body.BgColor)
	fill(&c.Frame.BorderColor, def.Frame.BorderColor)
	fill(&c.Frame.FocusColor, def.Frame.FocusColor)
	fill(&c.Frame.TitleColor, def.Frame.TitleColor)
	fill(&c.List.UnreadColor, def.List.UnreadColor)
	fill(&c.List.ReadColor, def.List.ReadColor)
	fill(&c.List.ScheduledColor, def.List.ScheduledColor)
	fill(&c.List.SentinelColor, def.List.SentinelColor)
	fill(&c.List.SelectedBg, def.List.SelectedBg)
	fill(&c.Status.FgColor, def.Status.FgColor)
	fill(&c.Status.ErrorColor, def.Status.ErrorColor)
	fill(&c.Status.BusyColor, def.Status.BusyColor)
}
