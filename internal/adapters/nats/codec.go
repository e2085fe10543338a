package natsadapter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
)

// Content types accepted on location.fix subjects.
const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"
)

// Fix is a device position report.
type Fix struct {
	Device string          `json:"device"`
	Point  domain.GeoPoint `json:"point"`
	At     time.Time       `json:"at"`
}

// EncodeFix builds a message for the device's fix subject in the given
// content type.
func EncodeFix(f Fix, contentType string) (*nats.Msg, error) {
	var (
		data []byte
		err  error
	)
	switch contentType {
	case ContentTypeProtobuf:
		data, err = marshalFixProto(f)
	case ContentTypeJSON, "":
		contentType = ContentTypeJSON
		data, err = json.Marshal(f)
	default:
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}
	if err != nil {
		return nil, fmt.Errorf("encode fix: %w", err)
	}

	msg := nats.NewMsg(SubjectFix + f.Device)
	msg.Header.Set("Content-Type", contentType)
	msg.Data = data
	return msg, nil
}

// DecodeFix parses a fix message; messages without a content type are JSON.
func DecodeFix(msg *nats.Msg) (Fix, error) {
	ct := ContentTypeJSON
	if msg.Header != nil && msg.Header.Get("Content-Type") != "" {
		ct = msg.Header.Get("Content-Type")
	}

	var f Fix
	switch ct {
	case ContentTypeProtobuf:
		return unmarshalFixProto(msg.Data)
	case ContentTypeJSON:
		if err := json.Unmarshal(msg.Data, &f); err != nil {
			return Fix{}, fmt.Errorf("decode fix: %w", err)
		}
		return f, nil
	default:
		return Fix{}, fmt.Errorf("unsupported content type %q", ct)
	}
}

// The protobuf form is a google.protobuf.Struct so producers need no
// generated code: {device, lat, lon, at: {seconds, nanos}}.
func marshalFixProto(f Fix) ([]byte, error) {
	ts := timestamppb.New(f.At)
	s, err := structpb.NewStruct(map[string]any{
		"device": f.Device,
		"lat":    f.Point.Lat,
		"lon":    f.Point.Lon,
		"at": map[string]any{
			"seconds": float64(ts.GetSeconds()),
			"nanos":   float64(ts.GetNanos()),
		},
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func unmarshalFixProto(data []byte) (Fix, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return Fix{}, fmt.Errorf("decode fix: %w", err)
	}
	fields := s.GetFields()

	lat, okLat := fields["lat"].GetKind().(*structpb.Value_NumberValue)
	lon, okLon := fields["lon"].GetKind().(*structpb.Value_NumberValue)
	if !okLat || !okLon {
		return Fix{}, fmt.Errorf("decode fix: missing lat/lon")
	}

	f := Fix{
		Device: fields["device"].GetStringValue(),
		Point:  domain.GeoPoint{Lat: lat.NumberValue, Lon: lon.NumberValue},
	}
	if at := fields["at"].GetStructValue(); at != nil {
		ts := &timestamppb.Timestamp{
			Seconds: int64(at.GetFields()["seconds"].GetNumberValue()),
			Nanos:   int32(at.GetFields()["nanos"].GetNumberValue()),
		}
		if err := ts.CheckValid(); err != nil {
			return Fix{}, fmt.Errorf("decode fix: %w", err)
		}
		f.At = ts.AsTime()
	}
	return f, nil
}
