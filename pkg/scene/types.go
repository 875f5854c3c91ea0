// Package scene holds the objects placed in a trial, the level geometry
// they sit in, and the rule that sizes and positions them.
package scene

import (
	"github.com/nede-neuro/go-nede/pkg/category"
	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/protocol"
	"github.com/nede-neuro/go-nede/pkg/visibility"
)

// AssetKind says how an asset is shown.
type AssetKind int

const (
	// Model is a 3D model with its own bounds.
	Model AssetKind = iota
	// Image is a flat picture shown on a thin panel.
	Image
)

// String returns "model" or "image".
func (k AssetKind) String() string {
	if k == Image {
		return "image"
	}
	return "model"
}

// Asset is one entry of a category in the resource store.
type Asset struct {
	Category string    `yaml:"-" json:"category"`
	Name     string    `yaml:"name" json:"name"`
	Kind     AssetKind `yaml:"-" json:"kind"`
	Size     geom.Vec3 `yaml:"-" json:"size"` // model bounds at unit scale
}

// AssetStore resolves objects by category and name. Finding nothing is a
// valid answer: the category simply does not hold that name.
type AssetStore interface {
	Lookup(category, name string) (Asset, bool)
	List(category string) []Asset
}

// Object is one placed target or distractor.
type Object struct {
	Number   int                 `json:"number"`
	Name     string              `json:"name"`
	Role     category.Role       `json:"role"`
	Motion   protocol.Motion     `json:"motion"`
	Kind     AssetKind           `json:"kind"`
	Category string              `json:"category"`
	Rotation geom.Quat           `json:"rotation"`
	Scale    float64             `json:"scale"`
	Bounds   geom.Bounds         `json:"bounds"`
	Cubby    int                 `json:"cubby"` // index into Environment.Cubbies, -1 if none
	Topology visibility.Topology `json:"-"`
	Tracked  bool                `json:"-"` // Topology is valid
}

// Position returns the bounds center, which is what the log records.
func (o *Object) Position() geom.Vec3 { return o.Bounds.Center }

// Tag returns TargetObject or DistractorObject.
func (o *Object) Tag() string { return o.Role.Tag() }

// CreatedEntry returns the log entry announcing o.
func (o *Object) CreatedEntry() protocol.Entry {
	return protocol.Entry{
		Kind:     protocol.KindCreated,
		Number:   o.Number,
		Name:     o.Name,
		Tag:      o.Tag(),
		Motion:   o.Motion,
		Position: o.Position(),
		Rotation: o.Rotation,
		HasRot:   true,
	}
}
