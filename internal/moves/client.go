package moves

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"vessel-svr/internal/codec"
)

var (
	ErrNoFeed     = errors.New("moves: feed URL not configured")
	ErrFeedStatus = errors.New("moves: unexpected feed status")
)

const maxFeedBytes = 8 << 20

var validate = validator.New()

// Client descarga el feed JSON de movimientos programados.
type Client struct {
	url        string
	loc        *time.Location
	httpClient *http.Client
}

// NewClient crea el cliente. loc interpreta los tiempos sin zona del feed.
func NewClient(url string, loc *time.Location, timeout time.Duration) *Client {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		url:        url,
		loc:        loc,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Location() *time.Location { return c.loc }

// Fetch descarga y parsea el feed. Los registros inválidos se descartan.
func (c *Client) Fetch(ctx context.Context) ([]Move, error) {
	if c.url == "" {
		return nil, ErrNoFeed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", c.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrFeedStatus, resp.StatusCode, c.url)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, err
	}
	return Parse(body, c.loc)
}

// Parse acepta un arreglo de registros o un objeto que lo envuelve bajo
// "data", "moves", "items" o "results".
func Parse(body []byte, loc *time.Location) ([]Move, error) {
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		var wrapped map[string]json.RawMessage
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil {
			return nil, fmt.Errorf("parse moves feed: %w", err)
		}
		found := false
		for _, k := range []string{"data", "moves", "items", "results"} {
			if raw, ok := wrapped[k]; ok {
				if err := json.Unmarshal(raw, &rows); err != nil {
					return nil, fmt.Errorf("parse moves feed %q: %w", k, err)
				}
				found = true
				break
			}
		}
		if !found {
			return nil, errors.New("parse moves feed: no record list")
		}
	}

	out := make([]Move, 0, len(rows))
	for _, row := range rows {
		if m, ok := parseRow(row, loc); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func parseRow(row map[string]any, loc *time.Location) (Move, bool) {
	mt, ok := parseMoveType(field(row, "moveType", "move_type", "type", "MoveType", "movement"))
	if !ok {
		return Move{}, false
	}
	m := Move{
		VesselName: strings.TrimSpace(field(row, "vesselName", "vessel_name", "VesselName", "vessel", "name")),
		IMO:        field(row, "imo", "IMO", "imoNumber", "imo_number"),
		MMSI:       field(row, "mmsi", "MMSI"),
		Type:       mt,
		ETA:        timeField(row, loc, "eta", "ETA"),
		ETD:        timeField(row, loc, "etd", "ETD"),
		ATA:        timeField(row, loc, "ata", "ATA"),
		ATD:        timeField(row, loc, "atd", "ATD"),
		Berth:      strings.TrimSpace(field(row, "berth", "Berth", "dock", "terminal")),
	}
	if !codec.ValidIMO(m.IMO) {
		m.IMO = ""
	}
	if !codec.ValidMMSI(m.MMSI) {
		m.MMSI = ""
	}
	if err := validate.Struct(m); err != nil {
		return Move{}, false
	}
	return m, true
}

func field(row map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := row[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04",
	"01/02/2006 3:04 PM",
	"01/02/2006 3:04:05 PM",
}

func timeField(row map[string]any, loc *time.Location, keys ...string) *time.Time {
	for _, k := range keys {
		switch v := row[k].(type) {
		case float64:
			// epoch en milisegundos
			t := time.UnixMilli(int64(v)).UTC()
			return &t
		case string:
			if t, ok := parseFeedTime(v, loc); ok {
				return &t
			}
		}
	}
	return nil
}

func parseFeedTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
