package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/navigation"
	"github.com/nede-neuro/go-nede/pkg/scene"
)

// Level describes the static geometry of a level and its walking route.
//
//	name: hallway
//	route: hallway_route.txt
//	cubbies:
//	  - name: L1
//	    position: [-5, 0, 20]
//	    yaw: 90
//	    locations: [[-5, 0, 19], [-5, 0, 21]]
//	walls:
//	  - [[-2.5, 0], [-2.5, 100]]
type Level struct {
	Name     string          `yaml:"name"`
	CellSize float64         `yaml:"cell_size"`
	Route    string          `yaml:"route"` // relative to the level file
	Cubbies  []levelCubby    `yaml:"cubbies"`
	Walls    [][2][2]float64 `yaml:"walls"`

	dir string
}

type levelCubby struct {
	scene.Cubby `yaml:",inline"`
	Position    [3]float64   `yaml:"position"`
	Locations   [][3]float64 `yaml:"locations"`
}

// ParseLevel decodes a level. Relative route paths resolve against dir.
func ParseLevel(data []byte, dir string) (*Level, error) {
	var l Level
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse level: %w", err)
	}
	if l.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidLevel)
	}
	if l.CellSize < 0 {
		return nil, fmt.Errorf("%w: cell_size %v", ErrInvalidLevel, l.CellSize)
	}
	l.dir = dir
	return &l, nil
}

// LoadLevel reads a level file.
func LoadLevel(path string) (*Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read level: %w", err)
	}
	return ParseLevel(data, filepath.Dir(path))
}

// Environment builds the scene geometry.
func (l *Level) Environment() *scene.Environment {
	env := scene.NewEnvironment(l.Name)
	if l.CellSize > 0 {
		env.CellSize = l.CellSize
	}
	for _, c := range l.Cubbies {
		cubby := c.Cubby
		cubby.Position = geom.V3(c.Position[0], c.Position[1], c.Position[2])
		cubby.Locations = make([]geom.Vec3, 0, len(c.Locations))
		for _, p := range c.Locations {
			cubby.Locations = append(cubby.Locations, geom.V3(p[0], p[1], p[2]))
		}
		env.Cubbies = append(env.Cubbies, cubby)
	}
	for _, w := range l.Walls {
		env.Walls = append(env.Walls, scene.Wall{
			A: geom.V2(w[0][0], w[0][1]),
			B: geom.V2(w[1][0], w[1][1]),
		})
	}
	return env
}

// RoutePath returns the route file path, or "" when the level has none.
func (l *Level) RoutePath() string {
	if l.Route == "" {
		return ""
	}
	if filepath.IsAbs(l.Route) {
		return l.Route
	}
	return filepath.Join(l.dir, l.Route)
}

// LoadRoute reads the level's route. A level without one returns nil.
func (l *Level) LoadRoute() (*navigation.Route, error) {
	path := l.RoutePath()
	if path == "" {
		return nil, nil
	}
	r, err := navigation.LoadRoute(path)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
