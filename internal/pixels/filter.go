package pixels

import (
	"fmt"

	"github.com/nfnt/resize"
)

// Filter is a named resampling filter.
type Filter struct {
	Name   string
	interp resize.InterpolationFunction
}

var filters = map[string]resize.InterpolationFunction{
	"nearest":  resize.NearestNeighbor,
	"bilinear": resize.Bilinear,
	"bicubic":  resize.Bicubic,
	"mitchell": resize.MitchellNetravali,
	"lanczos2": resize.Lanczos2,
	"lanczos3": resize.Lanczos3,
}

// ParseFilter looks up a filter by name. An empty name selects lanczos3.
func ParseFilter(name string) (*Filter, error) {
	if name == "" {
		name = "lanczos3"
	}
	f, ok := filters[name]
	if !ok {
		return nil, fmt.Errorf("unknown resize filter %q", name)
	}
	return &Filter{Name: name, interp: f}, nil
}

// String returns the filter name; a nil filter is lanczos3.
func (f *Filter) String() string {
	if f == nil {
		return "lanczos3"
	}
	return f.Name
}

func (f *Filter) interpFunc() resize.InterpolationFunction {
	if f == nil {
		return resize.Lanczos3
	}
	return f.interp
}
