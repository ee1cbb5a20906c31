package imagery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type Site struct {
	Name string
	ROI  orb.Polygon
}

var builtinSites = map[string]func() (orb.Polygon, error){
	"cocorna": func() (orb.Polygon, error) {
		return ROIFromPoints([]orb.Point{{-75.205, 6.108}, {-75.160, 6.108}, {-75.205, 6.062}, {-75.160, 6.062}})
	},
	"la_mosca": func() (orb.Polygon, error) {
		return ROIFromPoints([]orb.Point{{-75.3845077, 6.2052735}, {-75.3363690, 6.2052617}, {-75.3359859, 6.1513562}, {-75.3847079, 6.1515247}})
	},
	"san_carlos": func() (orb.Polygon, error) {
		return ROIFromPoints([]orb.Point{{-75.0174891, 6.2002711}, {-74.9691066, 6.2007604}, {-74.9686103, 6.1675056}, {-75.0172356, 6.1670877}})
	},
	"bajo_cauca": func() (orb.Polygon, error) {
		return ROIFromRectangle(-74.746023, 8.037527, -74.8303614, 8.113206), nil
	},
}

// Sites resolves site names against GeoJSON files in a folder first and the
// built-in regions second.
type Sites struct {
	dir string
}

func NewSites(geojsonDir string) *Sites {
	return &Sites{dir: geojsonDir}
}

func (s *Sites) Get(name string) (Site, error) {
	if !filepath.IsLocal(name) || strings.ContainsRune(name, filepath.Separator) {
		return Site{}, fmt.Errorf("%w: %s", ErrUnknownSite, name)
	}
	path := filepath.Join(s.dir, name+".geojson")
	if data, err := os.ReadFile(path); err == nil {
		roi, err := ROIFromGeoJSON(data)
		if err != nil {
			return Site{}, fmt.Errorf("site %s: %w", name, err)
		}
		return Site{Name: name, ROI: roi}, nil
	}
	build, ok := builtinSites[name]
	if !ok {
		return Site{}, fmt.Errorf("%w: %s", ErrUnknownSite, name)
	}
	roi, err := build()
	if err != nil {
		return Site{}, err
	}
	return Site{Name: name, ROI: roi}, nil
}

// Names lists GeoJSON sites and built-in ones, without duplicates.
func (s *Sites) Names() []string {
	seen := map[string]bool{}
	for n := range builtinSites {
		seen[n] = true
	}
	if files, err := os.ReadDir(s.dir); err == nil {
		for _, f := range files {
			if strings.HasSuffix(f.Name(), ".geojson") {
				seen[strings.TrimSuffix(f.Name(), ".geojson")] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ROIFromGeoJSON accepts a FeatureCollection, a Feature or a bare geometry.
// A single polygon is used as is; anything else becomes the convex hull of
// all its vertices.
func ROIFromGeoJSON(data []byte) (orb.Polygon, error) {
	var geoms []orb.Geometry
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && len(fc.Features) > 0 {
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	} else if f, err := geojson.UnmarshalFeature(data); err == nil && f.Geometry != nil {
		geoms = append(geoms, f.Geometry)
	} else if g, err := geojson.UnmarshalGeometry(data); err == nil && g.Coordinates != nil {
		geoms = append(geoms, g.Geometry())
	} else {
		return nil, fmt.Errorf("invalid GeoJSON region")
	}

	if len(geoms) == 1 {
		if p, ok := geoms[0].(orb.Polygon); ok {
			return p, nil
		}
	}

	var points []orb.Point
	for _, g := range geoms {
		points = append(points, vertices(g)...)
	}
	return ROIFromPoints(points)
}

func vertices(g orb.Geometry) []orb.Point {
	switch v := g.(type) {
	case orb.Point:
		return []orb.Point{v}
	case orb.MultiPoint:
		return v
	case orb.LineString:
		return v
	case orb.Ring:
		return v
	case orb.Polygon:
		var out []orb.Point
		for _, r := range v {
			out = append(out, r...)
		}
		return out
	case orb.MultiPolygon:
		var out []orb.Point
		for _, p := range v {
			out = append(out, vertices(p)...)
		}
		return out
	case orb.MultiLineString:
		var out []orb.Point
		for _, l := range v {
			out = append(out, l...)
		}
		return out
	case orb.Collection:
		var out []orb.Point
		for _, c := range v {
			out = append(out, vertices(c)...)
		}
		return out
	}
	return nil
}
