package components

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
)

var Position = donburi.NewComponentType[mgl64.Vec3]()
