package thingsboard

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/hove-io/gtfsrt-mqtt/internal/vehiclepositions"
)

// Telemetry keys read from each device.
const (
	KeyLatitude  = "latitude"
	KeyLongitude = "longitude"
	KeyPax       = "pax"
)

// TelemetryValue is one point of a ThingsBoard timeseries. Values are
// usually sent as strings but numbers are accepted too.
type TelemetryValue struct {
	Ts    int64           `json:"ts"`
	Value json.RawMessage `json:"value"`
}

// Timeseries is the body of GET /plugins/telemetry/DEVICE/{id}/values/timeseries:
// one array per key, most recent point first.
type Timeseries map[string][]TelemetryValue

// ParseTimeseries turns a timeseries body into a sample. Any missing or
// unparsable key fails the whole sample.
func ParseTimeseries(deviceID string, body []byte, fetchedAt time.Time) (*vehiclepositions.VehicleSample, error) {
	var ts Timeseries
	if err := json.Unmarshal(body, &ts); err != nil {
		return nil, &ParseError{DeviceID: deviceID, Err: errors.Wrap(err, "invalid json")}
	}

	lat, err := ts.latestFloat(KeyLatitude)
	if err != nil {
		return nil, &ParseError{DeviceID: deviceID, Err: err}
	}
	lon, err := ts.latestFloat(KeyLongitude)
	if err != nil {
		return nil, &ParseError{DeviceID: deviceID, Err: err}
	}
	pax, err := ts.latestInt(KeyPax)
	if err != nil {
		return nil, &ParseError{DeviceID: deviceID, Err: err}
	}

	sample, err := vehiclepositions.NewVehicleSample(deviceID, lat, lon, pax, fetchedAt)
	if err != nil {
		return nil, &ParseError{DeviceID: deviceID, Err: err}
	}
	return sample, nil
}

func (ts Timeseries) latest(key string) (string, error) {
	values, ok := ts[key]
	if !ok || len(values) == 0 {
		return "", errors.Errorf("missing key %s", key)
	}
	raw := bytes.TrimSpace(values[0].Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errors.Errorf("empty value for key %s", key)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", errors.Wrapf(err, "bad value for key %s", key)
		}
		return s, nil
	}
	return string(raw), nil
}

func (ts Timeseries) latestFloat(key string) (float64, error) {
	s, err := ts.latest(key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Errorf("bad value for key %s: %q", key, s)
	}
	return f, nil
}

func (ts Timeseries) latestInt(key string) (int, error) {
	s, err := ts.latest(key)
	if err != nil {
		return 0, err
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	// "30.0" is accepted, "30.5" is not
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, errors.Errorf("bad value for key %s: %q", key, s)
	}
	return int(f), nil
}
