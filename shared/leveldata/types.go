// Package leveldata parses the parts of a TMX level the authority needs:
// solid tiles, dead zones and player spawn points. It holds plain data only.
package leveldata

// Layer and object group names read from TMX files.
const (
	SolidLayer     = "wg-tiles"
	SpawnGroup     = "PlayerSpawn"
	DeadZoneGroup  = "DeadZones"
	slopeProperty  = "slope"
	spawnIndexProp = "spawnIndex"
)

// CollisionData is the collision-relevant content of one level.
type CollisionData struct {
	Name        string
	Solids      []Rect
	DeadZones   []Rect
	SpawnPoints []SpawnPoint
	MapWidth    int
	MapHeight   int
}

// Rect is an axis-aligned box in map pixels. Slope is empty for full tiles.
type Rect struct {
	X, Y, W, H float64
	Slope      string
}

// SpawnPoint is a player spawn location.
type SpawnPoint struct {
	X, Y  float64
	Index int
}
