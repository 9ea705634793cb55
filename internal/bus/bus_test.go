package bus

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ctu-vras/gnss-drivers/model"
)

func TestTopicsForLayouts(t *testing.T) {
	cases := []struct {
		name   string
		prefix string
		want   Topics
	}{
		{
			name:   "default_prefix",
			prefix: "gnss",
			want: Topics{
				Fix:         "gnss/fix",
				Status:      "gnss/status",
				Reference:   "gnss/reference",
				FilteredFix: "gnss/fix_filtered",
				Quality:     "gnss/quality",
			},
		},
		{
			name:   "trailing_slash_trimmed",
			prefix: "robot/gnss/",
			want: Topics{
				Fix:         "robot/gnss/fix",
				Status:      "robot/gnss/status",
				Reference:   "robot/gnss/reference",
				FilteredFix: "robot/gnss/fix_filtered",
				Quality:     "robot/gnss/quality",
			},
		},
		{
			name:   "empty_prefix_falls_back",
			prefix: "",
			want: Topics{
				Fix:         "gnss/fix",
				Status:      "gnss/status",
				Reference:   "gnss/reference",
				FilteredFix: "gnss/fix_filtered",
				Quality:     "gnss/quality",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TopicsFor(tc.prefix); got != tc.want {
				t.Fatalf("TopicsFor(%q) = %+v, want %+v", tc.prefix, got, tc.want)
			}
		})
	}
}

func TestDecodeFixRoundTrip(t *testing.T) {
	want := model.FixRecord{
		Stamp: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Lat:   50.0765,
		Lon:   14.4180,
		Alt:   290,
		Type:  model.FixGBAS,
		Cov:   model.Diagonal(1e-4, 1e-4, 4e-4),
	}
	payload, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := DecodeFix(payload)
	if err != nil {
		t.Fatalf("DecodeFix: %v", err)
	}
	if !got.Stamp.Equal(want.Stamp) || got.Lat != want.Lat || got.Type != want.Type || got.Cov != want.Cov {
		t.Fatalf("DecodeFix = %+v, want %+v", got, want)
	}
}

func TestDecodeFixRejectsBadPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		wantErr error
	}{
		{name: "not_json", payload: "$GPGGA,nope", wantErr: nil},
		{name: "missing_stamp", payload: `{"lat": 50.0, "lon": 14.4, "fix_type": 2}`, wantErr: model.ErrInvalidFix},
		{name: "latitude_out_of_range", payload: `{"stamp": "2024-06-01T12:00:00Z", "lat": 95.0, "lon": 14.4, "fix_type": 2}`, wantErr: model.ErrInvalidFix},
		{name: "unknown_fix_type", payload: `{"stamp": "2024-06-01T12:00:00Z", "lat": 50.0, "lon": 14.4, "fix_type": 7}`, wantErr: model.ErrInvalidFix},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeFix([]byte(tc.payload))
			if err == nil {
				t.Fatalf("DecodeFix accepted %q", tc.payload)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("DecodeFix error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestDecodeStatusValidates(t *testing.T) {
	good := `{"stamp": "2024-06-01T12:00:00Z", "satellites_used": 17, "ambiguity_ratio": 2.4}`
	status, err := DecodeStatus([]byte(good))
	if err != nil {
		t.Fatalf("DecodeStatus: %v", err)
	}
	if status.SatellitesUsed != 17 || status.AmbiguityRatio != 2.4 {
		t.Fatalf("DecodeStatus = %+v", status)
	}
	if _, ever := status.CorrectionsAge(status.Stamp); ever {
		t.Fatalf("absent last_corrections decoded as applied")
	}

	bad := `{"stamp": "2024-06-01T12:00:00Z", "satellites_used": -3}`
	if _, err := DecodeStatus([]byte(bad)); !errors.Is(err, model.ErrInvalidStatus) {
		t.Fatalf("DecodeStatus error = %v, want %v", err, model.ErrInvalidStatus)
	}
}

func TestDecodeReference(t *testing.T) {
	payload := `{"stamp": "2024-06-01T12:00:00Z", "frame": "utm", "easting": 458356.1, "northing": 5547298.6, "zone": "33U"}`
	upd, err := DecodeReference([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeReference: %v", err)
	}
	if upd.Frame != "utm" || upd.Zone != "33U" || upd.Easting != 458356.1 {
		t.Fatalf("DecodeReference = %+v", upd)
	}

	if _, err := DecodeReference([]byte("{broken")); err == nil {
		t.Fatal("DecodeReference accepted malformed JSON")
	}
}
