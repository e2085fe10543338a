package natsadapter

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
)

func TestFixCodec_BothContentTypes(t *testing.T) {
	in := Fix{
		Device: "phone",
		Point:  domain.GeoPoint{Lat: 23.8380, Lon: 90.3753},
		At:     time.Date(2026, 10, 17, 9, 30, 0, 123000000, time.UTC),
	}

	for _, ct := range []string{ContentTypeJSON, ContentTypeProtobuf} {
		t.Run(ct, func(t *testing.T) {
			msg, err := EncodeFix(in, ct)
			require.NoError(t, err)
			assert.Equal(t, "location.fix.phone", msg.Subject)
			assert.Equal(t, ct, msg.Header.Get("Content-Type"))

			out, err := DecodeFix(msg)
			require.NoError(t, err)
			assert.Equal(t, in.Device, out.Device)
			assert.Equal(t, in.Point, out.Point)
			assert.True(t, in.At.Equal(out.At), "at: got %v want %v", out.At, in.At)
		})
	}
}

func TestDecodeFix_HeaderlessIsJSON(t *testing.T) {
	out, err := DecodeFix(&nats.Msg{Data: []byte(`{"device":"d","point":{"lat":1,"lon":2}}`)})
	require.NoError(t, err)
	assert.Equal(t, domain.GeoPoint{Lat: 1, Lon: 2}, out.Point)
}

func TestDecodeFix_Rejects(t *testing.T) {
	_, err := EncodeFix(Fix{Device: "d"}, "text/csv")
	assert.Error(t, err)

	msg := nats.NewMsg("location.fix.d")
	msg.Header.Set("Content-Type", ContentTypeProtobuf)
	msg.Data = []byte{0xff, 0x01}
	_, err = DecodeFix(msg)
	assert.Error(t, err)

	_, err = DecodeFix(&nats.Msg{Data: []byte("{")})
	assert.Error(t, err)
}

func TestStateEvent_RendersTexts(t *testing.T) {
	d := 14.56
	ev := NewStateEvent("s1", domain.TrackingState{
		Phase:      domain.PhaseTracking,
		Permission: domain.PermissionGranted,
		DistanceKm: &d,
	})
	assert.Equal(t, "14.6 km", ev.DistanceText)
	assert.Equal(t, "Distance to location", ev.Subtitle)
}
