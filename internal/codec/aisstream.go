package codec

import (
	"encoding/json"
	"strings"
	"time"
)

// parseStreamJSON decodifica un frame JSON del feed (envoltorio MessageType/MetaData/Message).
func parseStreamJSON(text string, received time.Time) (rec Record) {
	defer func() {
		// best-effort: cualquier panic de extracción descarta el frame
		if r := recover(); r != nil {
			rec = Record{}
		}
	}()

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var root map[string]any
	if err := dec.Decode(&root); err != nil {
		return Record{}
	}

	f := &frame{}
	for _, k := range tagKeys {
		if s, ok := root[k].(string); ok && s != "" {
			f.tag = s
			break
		}
	}
	kind := kindOf(f.tag)
	if kind == KindUnknown {
		return Record{}
	}

	f.message, _ = root["Message"].(map[string]any)
	if f.message == nil {
		f.message, _ = root["message"].(map[string]any)
	}
	f.metaData, _ = root["MetaData"].(map[string]any)
	if f.metaData == nil {
		f.metaData, _ = root["metaData"].(map[string]any)
	}
	if f.metaData == nil {
		f.metaData, _ = root["Metadata"].(map[string]any)
	}
	if f.message != nil {
		if nested, ok := f.message[f.tag].(map[string]any); ok {
			f.body = nested
		} else {
			for k, v := range f.message {
				if strings.EqualFold(k, f.tag) {
					f.body, _ = v.(map[string]any)
					break
				}
			}
		}
	}

	mmsi, ok := firstText(f, mmsiExtractors, ValidMMSI)
	if !ok {
		return Record{}
	}

	rec = Record{
		MessageType: f.tag,
		MMSI:        mmsi,
		Timestamp:   received.UTC(),
	}
	if ts, ok := firstText(f, timeExtractors, nil); ok {
		if t, ok := parseTime(ts); ok {
			rec.Timestamp = t
		}
	}
	if name, ok := firstText(f, nameExtractors, nil); ok {
		rec.Name = cleanName(name)
	}
	if imo, ok := firstText(f, imoExtractors, ValidIMO); ok {
		rec.IMO = imo
	}

	switch kind {
	case KindPosition:
		lat, okLat := firstFloat(f, latExtractors, nil)
		lon, okLon := firstFloat(f, lonExtractors, nil)
		if !okLat || !okLon || !coordsValid(lat, lon) {
			return Record{}
		}
		rec.Kind = KindPosition
		rec.Lat, rec.Lon = lat, lon
		if v, ok := firstFloat(f, sogExtractors, validSOG); ok {
			rec.SOG = &v
		}
		if v, ok := firstFloat(f, cogExtractors, validCOG); ok {
			rec.COG = &v
		}
	case KindStatic:
		rec.Kind = KindStatic
	}
	return rec
}
