package geo

import (
	"math"

	"github.com/gansidui/geohash"
	golanggeo "github.com/kellydunn/golang-geo"
)

// EarthRadiusMiles es el radio medio usado por el haversine (millas terrestres).
const EarthRadiusMiles = 3958.7613

// Point es una posición en grados decimales.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" yaml:"lon" validate:"gte=-180,lte=180"`
}

// DistanceMiles calcula la distancia de gran círculo (haversine) en millas.
// No valida entradas: el llamador garantiza números finitos.
func DistanceMiles(a, b Point) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(h))
}

// BearingDeg devuelve el rumbo inicial de a hacia b, normalizado a [0, 360).
func BearingDeg(a, b Point) float64 {
	if a == b {
		return 0
	}
	brg := golanggeo.NewPoint(a.Lat, a.Lon).BearingTo(golanggeo.NewPoint(b.Lat, b.Lon))
	brg = math.Mod(brg, 360)
	if brg < 0 {
		brg += 360
	}
	return brg
}

// Geohash codifica el punto con la precisión dada (7 ≈ 150m).
func Geohash(p Point, precision int) string {
	hash, _ := geohash.Encode(p.Lat, p.Lon, precision)
	return hash
}

// Valid indica si el punto es finito y está dentro de rango.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// BBox es un rectángulo geográfico definido por dos esquinas opuestas.
type BBox [2]Point

// Corners devuelve las esquinas como pares [lat, lon], el formato del handshake.
func (b BBox) Corners() [][2]float64 {
	return [][2]float64{{b[0].Lat, b[0].Lon}, {b[1].Lat, b[1].Lon}}
}

// Contains indica si p cae dentro de la caja, sin importar el orden de las esquinas.
func (b BBox) Contains(p Point) bool {
	minLat, maxLat := math.Min(b[0].Lat, b[1].Lat), math.Max(b[0].Lat, b[1].Lat)
	minLon, maxLon := math.Min(b[0].Lon, b[1].Lon), math.Max(b[0].Lon, b[1].Lon)
	return p.Lat >= minLat && p.Lat <= maxLat && p.Lon >= minLon && p.Lon <= maxLon
}

func (b BBox) IsZero() bool { return b == BBox{} }
