package noc

import (
	"fmt"

	"github.com/inference-sim/nocsim/sim"
)

// Mesh is a 2-D mesh with XY dimension-order routing. Node id = y*Width + x.
type Mesh struct {
	network
	width, height int
}

func (m *Mesh) Setup(cfg sim.NetworkConfig) error {
	if cfg.Width < 1 || cfg.Height < 1 {
		return fmt.Errorf("mesh: width and height must be >= 1, got %dx%d", cfg.Width, cfg.Height)
	}
	m.width, m.height = cfg.Width, cfg.Height
	return m.setup("mesh", cfg, cfg.Width*cfg.Height, m.routeXY)
}

// routeXY travels along x first, then y.
func (m *Mesh) routeXY(src, dest int) []link {
	x, y := src%m.width, src/m.width
	dx, dy := dest%m.width, dest/m.width
	var route []link
	for x != dx {
		next := x + sign(dx-x)
		route = append(route, link{from: y*m.width + x, to: y*m.width + next})
		x = next
	}
	for y != dy {
		next := y + sign(dy-y)
		route = append(route, link{from: y*m.width + x, to: next*m.width + x})
		y = next
	}
	return route
}

func sign(v int) int {
	if v < 0 {
		return -1
	}
	return 1
}
