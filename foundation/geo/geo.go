// Package geo provides great-circle distance and polyline helpers used when
// building segment geometry for journey responses.
package geo

import (
	"math"
)

const earthRadiusMeters = 6371000

// Coord is a longitude/latitude pair, in that order, matching GeoJSON.
type Coord [2]float64

// Distance returns the haversine distance in meters between two coordinates.
func Distance(a, b Coord) float64 {
	lon1 := a[0] * math.Pi / 180
	lat1 := a[1] * math.Pi / 180
	lon2 := b[0] * math.Pi / 180
	lat2 := b[1] * math.Pi / 180

	dlon := lon2 - lon1
	dlat := lat2 - lat1
	h := math.Pow(math.Sin(dlat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	return 2 * math.Asin(math.Sqrt(h)) * earthRadiusMeters
}

// StraightLine returns a two point lat/lon polyline between origin and dest.
// Response coordinates are [lat, lon] for map rendering.
func StraightLine(origin, dest Coord) [][2]float64 {
	return [][2]float64{
		{origin[1], origin[0]},
		{dest[1], dest[0]},
	}
}

// pointToSegment returns the distance in meters from point to the segment
// between segStart and segEnd, along with the projected point on the segment.
func pointToSegment(point, segStart, segEnd Coord) (float64, Coord) {
	px, py := point[0], point[1]
	x1, y1 := segStart[0], segStart[1]
	x2, y2 := segEnd[0], segEnd[1]

	segLenSq := (x2-x1)*(x2-x1) + (y2-y1)*(y2-y1)
	if segLenSq == 0 {
		return Distance(point, segStart), segStart
	}

	t := ((px-x1)*(x2-x1) + (py-y1)*(y2-y1)) / segLenSq
	t = math.Max(0, math.Min(1, t))

	closest := Coord{x1 + t*(x2-x1), y1 + t*(y2-y1)}
	return Distance(point, closest), closest
}

// closestPointOnLine finds the polyline segment closest to target and the
// projection of target onto it.
func closestPointOnLine(coords []Coord, target Coord) (int, Coord) {
	minDist := math.Inf(1)
	bestIdx := 0
	var bestProjection Coord

	for i := 0; i < len(coords)-1; i++ {
		dist, projection := pointToSegment(target, coords[i], coords[i+1])
		if dist < minDist {
			minDist = dist
			bestIdx = i
			bestProjection = projection
		}
	}
	return bestIdx, bestProjection
}

// PartialLine extracts the stretch of a route polyline between the points
// closest to origin and dest. The walk over coordinate indices runs in both
// directions so an inverted origin/dest pair still yields a path. Returned
// coordinates are [lat, lon].
func PartialLine(coords []Coord, origin, dest Coord) [][2]float64 {
	if len(coords) < 2 {
		return StraightLine(origin, dest)
	}

	originSegIdx, originProjection := closestPointOnLine(coords, origin)
	destSegIdx, destProjection := closestPointOnLine(coords, dest)

	originIdx, destIdx := -1, -1
	for i, coord := range coords {
		if Distance(coord, originProjection) < 0.001 {
			originIdx = i
		}
		if Distance(coord, destProjection) < 0.001 {
			destIdx = i
		}
	}
	if originIdx < 0 || destIdx < 0 {
		originIdx = originSegIdx
		if originSegIdx+1 < len(coords) {
			originIdx = originSegIdx + 1
		}
		destIdx = destSegIdx
		if destSegIdx+1 < len(coords) {
			destIdx = destSegIdx + 1
		}
	}

	partial := make([]Coord, 0)
	if originIdx <= destIdx {
		for i := originIdx; i <= destIdx; i++ {
			partial = append(partial, coords[i])
		}
	} else {
		for i := originIdx; i >= destIdx; i-- {
			partial = append(partial, coords[i])
		}
	}
	if len(partial) == 0 {
		return [][2]float64{
			{originProjection[1], originProjection[0]},
			{destProjection[1], destProjection[0]},
		}
	}
	partial[0] = originProjection
	partial[len(partial)-1] = destProjection

	result := make([][2]float64, 0, len(partial))
	for _, coord := range partial {
		result = append(result, [2]float64{coord[1], coord[0]})
	}
	return result
}
