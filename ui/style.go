package ui

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/pulivilizator/billmgr-addon/envelope"
)

var dimensionPattern = regexp.MustCompile(`^\d+(px|%)$`)

// Style is the presentation of a column or cell. Empty members are unset.
type Style struct {
	Align  string
	Width  string
	Height string
	Weight string
	Size   string
	Color  string
}

// Validate checks every set member.
func (s Style) Validate() error {
	switch s.Align {
	case "", "left", "center", "right":
	default:
		return fmt.Errorf("ui: align %q must be left, center or right", s.Align)
	}
	if s.Width != "" && !dimensionPattern.MatchString(s.Width) {
		return fmt.Errorf("ui: width %q must be an integer with units, e.g. 10px or 50%%", s.Width)
	}
	if s.Height != "" && !dimensionPattern.MatchString(s.Height) {
		return fmt.Errorf("ui: height %q must be an integer with units, e.g. 10px or 50%%", s.Height)
	}
	switch s.Weight {
	case "", "normal", "bold":
	default:
		n, err := strconv.Atoi(s.Weight)
		if err != nil || n < 1 || n > 1000 {
			return fmt.Errorf("ui: weight %q must be normal, bold or an integer in [1, 1000]", s.Weight)
		}
	}
	switch s.Size {
	case "", "h1", "h2", "h3", "h4", "h5", "h6":
	default:
		return fmt.Errorf("ui: size %q must be one of h1..h6", s.Size)
	}
	return nil
}

func (s Style) apply(attrs *envelope.Attributes) {
	set := func(key, v string) {
		if v != "" {
			attrs.Set(key, v)
		}
	}
	set("align", s.Align)
	set("width", s.Width)
	set("height", s.Height)
	set("weight", s.Weight)
	set("size", s.Size)
	set("color", s.Color)
}

func styleOf(attrs envelope.Attributes) Style {
	return Style{
		Align:  attrs.Value("align"),
		Width:  attrs.Value("width"),
		Height: attrs.Value("height"),
		Weight: attrs.Value("weight"),
		Size:   attrs.Value("size"),
		Color:  attrs.Value("color"),
	}
}

// Styled returns a copy of c with style applied.
func (c TextCell) Styled(s Style) (TextCell, error) {
	if err := s.Validate(); err != nil {
		return c, err
	}
	c.Attrs = c.Attrs.Clone()
	s.apply(&c.Attrs)
	return c, nil
}

// Styled returns a copy of c with style applied.
func (c PriceCell) Styled(s Style) (PriceCell, error) {
	if err := s.Validate(); err != nil {
		return c, err
	}
	c.Attrs = c.Attrs.Clone()
	s.apply(&c.Attrs)
	return c, nil
}
