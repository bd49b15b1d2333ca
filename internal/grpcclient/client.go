package grpcclient

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"vessel-svr/internal/tracker"
)

// SendDataMethod es el RPC unario del forwarder.
const SendDataMethod = "/forwarder.Forwarder/SendData"

// Forwarder reenvía cada actualización a un servicio gRPC externo. El mensaje
// es un google.protobuf.Struct, así que no hay stubs generados que mantener.
type Forwarder struct {
	conn *grpc.ClientConn
}

func NewForwarder(addr string) (*Forwarder, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &Forwarder{conn: conn}, nil
}

func (f *Forwarder) Name() string { return "grpc" }

func (f *Forwarder) Close() error { return f.conn.Close() }

func (f *Forwarder) Publish(ctx context.Context, v tracker.TrackedVessel) error {
	req, err := toStruct(v)
	if err != nil {
		return err
	}
	res := &structpb.Struct{}
	if err := f.conn.Invoke(ctx, SendDataMethod, req, res); err != nil {
		return err
	}
	if ok, present := res.GetFields()["success"]; present && !ok.GetBoolValue() {
		return fmt.Errorf("forwarder rejected update for %s", v.MMSI)
	}
	return nil
}

func toStruct(v tracker.TrackedVessel) (*structpb.Struct, error) {
	m := map[string]any{
		"deviceId":    v.MMSI,
		"mmsi":        v.MMSI,
		"lat":         v.Lat,
		"lon":         v.Lon,
		"lastSeenISO": v.LastSeenISO,
	}
	if v.IMO != "" {
		m["imo"] = v.IMO
	}
	if v.Name != "" {
		m["name"] = v.Name
	}
	if v.SOG != nil {
		m["sog"] = *v.SOG
	}
	if v.COG != nil {
		m["cog"] = *v.COG
	}
	return structpb.NewStruct(m)
}
