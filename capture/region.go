package capture

import "fmt"

// MinRegionSize is the exclusive lower bound for both region dimensions.
// Drags at or below it are treated as accidental clicks.
const MinRegionSize = 10

// Region is a rectangle in viewport coordinates.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Normalize builds the rectangle spanned by two corner points. The drag
// direction does not matter.
func Normalize(x0, y0, x1, y1 float64) Region {
	return Region{
		X:      min(x0, x1),
		Y:      min(y0, y1),
		Width:  abs(x1 - x0),
		Height: abs(y1 - y0),
	}
}

// Valid reports whether both dimensions exceed MinRegionSize.
func (r Region) Valid() bool {
	return r.Width > MinRegionSize && r.Height > MinRegionSize
}

// Check returns a SelectionTooSmall error for regions that are not Valid.
func (r Region) Check() error {
	if r.Valid() {
		return nil
	}
	return &Error{
		Kind: KindSelectionTooSmall,
		Op:   "region",
		Err:  fmt.Errorf("%.0fx%.0f is below %dx%d", r.Width, r.Height, MinRegionSize, MinRegionSize),
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
