package codec

import (
	"bufio"
	"strconv"
	"strings"
	"time"

	ais "github.com/BertoldVdb/go-ais"
	"github.com/BertoldVdb/go-ais/aisnmea"
)

// isNMEA detecta sentencias AIVDM/AIVDO crudas (p.ej. desde un receptor local).
func isNMEA(text string) bool {
	return strings.HasPrefix(text, "!AIVD") || strings.HasPrefix(text, "!BSVD") ||
		strings.HasPrefix(text, "!ABVD")
}

// parseNMEA decodifica una o varias líneas NMEA. Las sentencias multiparte se
// acumulan en el codec hasta completarse; devuelve el primer paquete útil.
func parseNMEA(codec *aisnmea.NMEACodec, text string, received time.Time) Record {
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		vdm, err := codec.ParseSentence(line)
		if err != nil || vdm == nil || vdm.Packet == nil {
			continue
		}
		if rec := fromPacket(vdm.Packet, received); !rec.Ignored() {
			return rec
		}
	}
	return Record{}
}

func fromPacket(p ais.Packet, received time.Time) Record {
	hdr := p.GetHeader()
	if hdr == nil {
		return Record{}
	}
	mmsi := strconv.FormatUint(uint64(hdr.UserID), 10)
	if !ValidMMSI(mmsi) {
		return Record{}
	}
	rec := Record{MMSI: mmsi, Timestamp: received.UTC()}

	position := func(lat, lon, sog, cog float64) Record {
		if !coordsValid(lat, lon) {
			return Record{}
		}
		rec.Kind = KindPosition
		rec.Lat, rec.Lon = lat, lon
		if validSOG(sog) {
			rec.SOG = &sog
		}
		if validCOG(cog) {
			rec.COG = &cog
		}
		return rec
	}

	switch m := p.(type) {
	case ais.PositionReport:
		rec.MessageType = MsgPositionReport
		return position(float64(m.Latitude), float64(m.Longitude), float64(m.Sog), float64(m.Cog))
	case ais.StandardClassBPositionReport:
		rec.MessageType = MsgStandardClassBPositionReport
		return position(float64(m.Latitude), float64(m.Longitude), float64(m.Sog), float64(m.Cog))
	case ais.ExtendedClassBPositionReport:
		rec.MessageType = MsgExtendedClassBPositionReport
		rec.Name = cleanName(m.Name)
		return position(float64(m.Latitude), float64(m.Longitude), float64(m.Sog), float64(m.Cog))
	case ais.StaticDataReport:
		// la parte B solo trae tipo y distintivo de llamada
		if m.PartNumber || !m.ReportA.Valid {
			return Record{}
		}
		name := cleanName(m.ReportA.Name)
		if name == "" {
			return Record{}
		}
		rec.MessageType = MsgStaticDataReport
		rec.Kind = KindStatic
		rec.Name = name
		return rec
	case ais.ShipStaticData:
		rec.MessageType = MsgShipStaticData
		rec.Kind = KindStatic
		rec.Name = cleanName(m.Name)
		if imo := strconv.FormatUint(uint64(m.ImoNumber), 10); ValidIMO(imo) {
			rec.IMO = imo
		}
		return rec
	}
	return Record{}
}
