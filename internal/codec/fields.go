package codec

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reMMSI = regexp.MustCompile(`^[0-9]{9}$`)
	reIMO  = regexp.MustCompile(`^[0-9]{7}$`)
)

// cogUnavailable es el centinela AIS de "rumbo no disponible".
const cogUnavailable = 511

// sogUnavailable: 1023 en décimas de nudo.
const sogUnavailable = 102.3

// section identifica la parte del frame donde se busca un campo.
type section int

const (
	secBody     section = iota // Message.<kind>
	secMessage                 // Message (sin anidar)
	secMetaData                // MetaData
)

// frame es el JSON del feed ya separado en secciones.
type frame struct {
	tag      string
	body     map[string]any
	message  map[string]any
	metaData map[string]any
}

func (f *frame) section(s section) map[string]any {
	switch s {
	case secBody:
		return f.body
	case secMessage:
		return f.message
	default:
		return f.metaData
	}
}

// lookup sigue una ruta de claves dentro de una sección.
func (f *frame) lookup(s section, path ...string) (any, bool) {
	cur := f.section(s)
	for i, k := range path {
		if cur == nil {
			return nil, false
		}
		v, ok := cur[k]
		if !ok || v == nil {
			return nil, false
		}
		if i == len(path)-1 {
			return v, true
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// Extractores con nombre: cada campo lógico tiene una lista priorizada y se
// toma el primero que devuelve un valor.

type floatExtractor struct {
	name string
	get  func(*frame) (float64, bool)
}

type stringExtractor struct {
	name string
	get  func(*frame) (string, bool)
}

func numberAt(s section, path ...string) floatExtractor {
	return floatExtractor{
		name: sectionName(s) + "." + strings.Join(path, "."),
		get: func(f *frame) (float64, bool) {
			v, ok := f.lookup(s, path...)
			if !ok {
				return 0, false
			}
			return toFloat(v)
		},
	}
}

func textAt(s section, path ...string) stringExtractor {
	return stringExtractor{
		name: sectionName(s) + "." + strings.Join(path, "."),
		get: func(f *frame) (string, bool) {
			v, ok := f.lookup(s, path...)
			if !ok {
				return "", false
			}
			return toText(v)
		},
	}
}

// bodyNumber busca primero en el cuerpo anidado y luego en el mensaje directo.
func bodyNumber(keys ...string) []floatExtractor {
	out := make([]floatExtractor, 0, 2*len(keys))
	for _, s := range []section{secBody, secMessage} {
		for _, k := range keys {
			out = append(out, numberAt(s, k))
		}
	}
	return out
}

func bodyText(keys ...string) []stringExtractor {
	out := make([]stringExtractor, 0, 2*len(keys))
	for _, s := range []section{secBody, secMessage} {
		for _, k := range keys {
			out = append(out, textAt(s, k))
		}
	}
	return out
}

func firstFloat(f *frame, exts []floatExtractor, accept func(float64) bool) (float64, bool) {
	for _, e := range exts {
		v, ok := e.get(f)
		if !ok {
			continue
		}
		if accept != nil && !accept(v) {
			continue
		}
		return v, true
	}
	return 0, false
}

func firstText(f *frame, exts []stringExtractor, accept func(string) bool) (string, bool) {
	for _, e := range exts {
		v, ok := e.get(f)
		if !ok {
			continue
		}
		if accept != nil && !accept(v) {
			continue
		}
		return v, true
	}
	return "", false
}

var (
	latExtractors = append(bodyNumber("Latitude", "latitude", "Lat", "lat"),
		numberAt(secMetaData, "latitude"), numberAt(secMetaData, "Latitude"), numberAt(secMetaData, "lat"))

	lonExtractors = append(bodyNumber("Longitude", "longitude", "Lon", "lon", "Lng", "lng"),
		numberAt(secMetaData, "longitude"), numberAt(secMetaData, "Longitude"), numberAt(secMetaData, "lon"))

	sogExtractors = bodyNumber("Sog", "sog", "SOG", "SpeedOverGround", "speedOverGround", "speed")

	cogExtractors = bodyNumber("Cog", "cog", "COG", "CourseOverGround", "courseOverGround", "course")

	mmsiExtractors = append([]stringExtractor{
		textAt(secMetaData, "MMSI"), textAt(secMetaData, "mmsi"), textAt(secMetaData, "MMSI_String"),
	}, bodyText("UserID", "userId", "UserId", "MMSI", "mmsi")...)

	imoExtractors = append(bodyText("ImoNumber", "imoNumber", "IMO", "imo", "Imo"),
		textAt(secMetaData, "IMO"), textAt(secMetaData, "imo"))

	nameExtractors = append(append(bodyText("Name", "ShipName", "name", "shipName"),
		textAt(secBody, "ReportA", "Name"), textAt(secMessage, "ReportA", "Name")),
		textAt(secMetaData, "ShipName"), textAt(secMetaData, "shipName"), textAt(secMetaData, "ship_name"))

	timeExtractors = []stringExtractor{
		textAt(secMetaData, "time_utc"), textAt(secMetaData, "TimeUtc"), textAt(secMetaData, "timeUtc"),
		textAt(secMetaData, "timestamp"),
	}

	tagKeys = []string{"MessageType", "messageType", "message_type", "type"}
)

func sectionName(s section) string {
	switch s {
	case secBody:
		return "body"
	case secMessage:
		return "message"
	default:
		return "meta"
	}
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	case float64:
		f = n
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = x
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		s = strings.TrimSpace(s)
		return s, s != ""
	case json.Number:
		return s.String(), true
	case float64:
		if s != math.Trunc(s) {
			return strconv.FormatFloat(s, 'f', -1, 64), true
		}
		return strconv.FormatInt(int64(s), 10), true
	default:
		return "", false
	}
}

// ValidMMSI acepta sólo identificadores de 9 dígitos.
func ValidMMSI(s string) bool { return reMMSI.MatchString(s) }

// ValidIMO acepta sólo números de casco de 7 dígitos.
func ValidIMO(s string) bool { return reIMO.MatchString(s) }

func validCOG(v float64) bool {
	return v != cogUnavailable && v >= 0 && v <= 360
}

func validSOG(v float64) bool {
	return v >= 0 && v < sogUnavailable
}

// coordsValid descarta 0/0 y coordenadas fuera de rango (91/181 = no disponible en AIS).
func coordsValid(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	return true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// cleanName quita el relleno '@' de los nombres AIS.
func cleanName(s string) string {
	s = strings.TrimRight(s, "@ ")
	return strings.TrimSpace(s)
}
