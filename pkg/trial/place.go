package trial

import (
	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/protocol"
	"github.com/nede-neuro/go-nede/pkg/scene"
)

// FloorY is the height objects are set down on.
const FloorY = 0.0

// slot is the location one cubby offers this session.
type slot struct {
	cubby    int
	location geom.Vec3
	rotation geom.Quat
}

// pickSlots chooses one location per cubby, lifted to half the object
// size so its center sits where a resting object's would.
func (s *Scheduler) pickSlots() []slot {
	y := s.hdr.ObjectSize / 2
	var out []slot
	for i, c := range s.env.Cubbies {
		if len(c.Locations) == 0 {
			continue
		}
		loc := c.Locations[s.rng.IntN(len(c.Locations))]
		loc.Y = y
		out = append(out, slot{cubby: i, location: loc, rotation: c.Rotation()})
	}
	return out
}

// placeObjects fills each slot with probability ObjectPrevalence.
func (s *Scheduler) placeObjects() {
	for _, sl := range s.slots {
		if s.rng.Float64() < s.hdr.ObjectPrevalence {
			s.placeObject(sl)
		}
	}
}

// placeObject draws a category, then an asset from it with replacement,
// and places it in sl.
func (s *Scheduler) placeObject(sl slot) {
	ci := s.table.Select(s.rng.Float64())
	entry := s.table.Entry(ci)
	assets := s.assets.List(entry.Name)
	if len(assets) == 0 {
		s.log.Warn("category has no assets", "category", entry.Name)
		return
	}
	a := assets[s.rng.IntN(len(assets))]

	o := scene.Object{
		Name:     a.Name,
		Role:     entry.Role,
		Motion:   protocol.Stationary,
		Kind:     a.Kind,
		Category: entry.Name,
	}
	if a.Kind == scene.Image {
		o.Rotation = scene.ImageRotation(sl.rotation)
		o.Scale = 1
		o.Bounds = scene.ImageBounds(s.hdr.ObjectSize, o.Rotation, sl.location)
	} else {
		o.Rotation = sl.rotation
		o.Scale, o.Bounds = scene.PlaceModel(a, sl.rotation, s.hdr.ObjectSize, sl.location, FloorY)
	}
	placed := s.reg.Create(o)
	s.env.AttachTo(placed, sl.cubby)
	s.emit(placed.CreatedEntry())
}

// destroyAll removes every object and restarts numbering.
func (s *Scheduler) destroyAll() {
	s.reg.DestroyAll()
	s.emit(protocol.Entry{Kind: protocol.KindDestroyedAll})
}
