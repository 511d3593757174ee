package leveldata

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/lafriks/go-tiled"
)

var ErrNoLevels = errors.New("no levels found")

// Load parses one TMX file from fsys.
func Load(fsys fs.FS, tmxPath string) (*CollisionData, error) {
	m, err := tiled.LoadFile(tmxPath, tiled.WithFileSystem(fsys))
	if err != nil {
		return nil, fmt.Errorf("load tmx %s: %w", tmxPath, err)
	}

	data := &CollisionData{
		Name:      strings.TrimSuffix(path.Base(tmxPath), ".tmx"),
		MapWidth:  m.Width * m.TileWidth,
		MapHeight: m.Height * m.TileHeight,
	}
	for _, layer := range m.Layers {
		if layer.Name == SolidLayer {
			data.Solids = solids(m, layer)
			break
		}
	}
	for _, og := range m.ObjectGroups {
		switch og.Name {
		case SpawnGroup:
			for _, o := range og.Objects {
				data.SpawnPoints = append(data.SpawnPoints, SpawnPoint{
					X:     o.X,
					Y:     o.Y,
					Index: o.Properties.GetInt(spawnIndexProp),
				})
			}
		case DeadZoneGroup:
			for _, o := range og.Objects {
				data.DeadZones = append(data.DeadZones, Rect{X: o.X, Y: o.Y, W: o.Width, H: o.Height})
			}
		}
	}

	sort.SliceStable(data.SpawnPoints, func(i, j int) bool {
		return data.SpawnPoints[i].Index < data.SpawnPoints[j].Index
	})
	return data, nil
}

func solids(m *tiled.Map, layer *tiled.Layer) []Rect {
	tw, th := float64(m.TileWidth), float64(m.TileHeight)
	var out []Rect
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			tile := layer.Tiles[y*m.Width+x]
			if tile.IsNil() {
				continue
			}
			var slope string
			if t, err := tile.Tileset.GetTilesetTile(tile.ID); err == nil {
				slope = t.Properties.GetString(slopeProperty)
			}
			out = append(out, Rect{
				X:     float64(x) * tw,
				Y:     float64(y) * th,
				W:     tw,
				H:     th,
				Slope: slope,
			})
		}
	}
	return out
}

// LoadDir parses every .tmx file in dir and returns them keyed by file stem,
// along with the sorted stems.
func LoadDir(fsys fs.FS, dir string) (map[string]*CollisionData, []string, error) {
	matches, err := fs.Glob(fsys, path.Join(dir, "*.tmx"))
	if err != nil {
		return nil, nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", dir, ErrNoLevels)
	}

	levels := make(map[string]*CollisionData, len(matches))
	names := make([]string, 0, len(matches))
	for _, p := range matches {
		data, err := Load(fsys, p)
		if err != nil {
			return nil, nil, err
		}
		levels[data.Name] = data
		names = append(names, data.Name)
	}
	sort.Strings(names)
	return levels, names, nil
}

// Pick returns the level called name, or the first level by name when name
// is empty.
func Pick(levels map[string]*CollisionData, names []string, name string) (*CollisionData, error) {
	if name == "" {
		if len(names) == 0 {
			return nil, ErrNoLevels
		}
		name = names[0]
	}
	data, ok := levels[name]
	if !ok {
		return nil, fmt.Errorf("level %q not found", name)
	}
	return data, nil
}
