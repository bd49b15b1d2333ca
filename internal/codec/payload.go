package codec

import (
	"encoding/json"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxPayload acota la lectura de payloads perezosos (io.Reader).
const maxPayload = 1 << 20

// ToText normaliza un payload de frame a texto UTF-8.
// Acepta string, []byte, json.RawMessage, arreglos de bytes ([]int, []any con números)
// y lectores perezosos (io.Reader). Devuelve false si el payload está vacío o no es soportado.
func ToText(payload any) (string, bool) {
	var s string
	switch v := payload.(type) {
	case nil:
		return "", false
	case string:
		s = v
	case []byte:
		s = string(v)
	case json.RawMessage:
		s = string(v)
	case []int:
		b := make([]byte, 0, len(v))
		for _, n := range v {
			if n < 0 || n > 0xFF {
				return "", false
			}
			b = append(b, byte(n))
		}
		s = string(b)
	case []any:
		b := make([]byte, 0, len(v))
		for _, e := range v {
			n, ok := e.(float64)
			if !ok || n < 0 || n > 0xFF || n != float64(int(n)) {
				return "", false
			}
			b = append(b, byte(n))
		}
		s = string(b)
	case io.Reader:
		b, err := io.ReadAll(io.LimitReader(v, maxPayload))
		if err != nil {
			return "", false
		}
		s = string(b)
	default:
		return "", false
	}

	// BOM y espacios Unicode (NBSP) al inicio rompen el json.Unmarshal
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\ufeff'
	})
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	if s == "" || !utf8.ValidString(s) {
		return "", false
	}
	return s, true
}
