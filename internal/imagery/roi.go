package imagery

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// ROIFromPoints returns the convex hull of lon/lat points as a closed
// polygon.
func ROIFromPoints(points []orb.Point) (orb.Polygon, error) {
	if len(points) < 3 {
		return nil, ErrNotEnoughPoints
	}
	hull := convexHull(points)
	if len(hull) < 4 {
		return nil, fmt.Errorf("%w: points are collinear", ErrNotEnoughPoints)
	}
	return orb.Polygon{hull}, nil
}

// ROIFromRectangle accepts corners in any order.
func ROIFromRectangle(x1, y1, x2, y2 float64) orb.Polygon {
	b := orb.Bound{
		Min: orb.Point{math.Min(x1, x2), math.Min(y1, y2)},
		Max: orb.Point{math.Max(x1, x2), math.Max(y1, y2)},
	}
	return b.ToPolygon()
}

// ResolveRegion prefers an explicit region and falls back to the hull of
// points.
func ResolveRegion(region orb.Polygon, points []orb.Point) (orb.Polygon, error) {
	if len(region) > 0 {
		return region, nil
	}
	if len(points) == 0 {
		return nil, ErrMissingRegion
	}
	return ROIFromPoints(points)
}

// PixelSize converts a bound in degrees to an output size at scale metres
// per pixel, clamped to what the process API accepts.
func PixelSize(b orb.Bound, scale float64) (int, int) {
	return degreesToPixels(b.Max.X()-b.Min.X(), scale), degreesToPixels(b.Max.Y()-b.Min.Y(), scale)
}

func degreesToPixels(distance, scale float64) int {
	pixels := int(distance * (111_000.0 / scale))
	if pixels < 1 {
		return 1
	}
	if pixels > 2500 {
		return 2500
	}
	return pixels
}

// convexHull is Andrew's monotone chain. The ring is counter-clockwise and
// closed.
func convexHull(points []orb.Point) orb.Ring {
	pts := make([]orb.Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})

	cross := func(o, a, b orb.Point) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}

	hull := make([]orb.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	// the last point repeats the first, which closes the ring
	return orb.Ring(hull)
}
