package codec

import (
	"strings"
	"sync"
	"time"

	ais "github.com/BertoldVdb/go-ais"
	"github.com/BertoldVdb/go-ais/aisnmea"
)

// Decoder convierte frames del stream en Records. Nunca devuelve error:
// un frame inválido se traduce en un Record ignorado.
type Decoder struct {
	mu   sync.Mutex
	nmea *aisnmea.NMEACodec
	now  func() time.Time
}

func NewDecoder() *Decoder {
	return &Decoder{
		nmea: aisnmea.NMEACodecNew(ais.CodecNew(false, false)),
		now:  time.Now,
	}
}

// Decode normaliza el payload (texto o binario) y lo parsea.
func (d *Decoder) Decode(payload any) Record {
	text, ok := ToText(payload)
	if !ok {
		return Record{}
	}
	received := d.now()

	if strings.HasPrefix(text, "{") {
		return parseStreamJSON(text, received)
	}
	if isNMEA(text) {
		d.mu.Lock()
		defer d.mu.Unlock()
		return parseNMEA(d.nmea, text, received)
	}
	return Record{}
}
