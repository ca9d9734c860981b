package thingsboard

import (
	"context"
	"fmt"
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hove-io/gtfsrt-mqtt/internal/connectors"
	"github.com/hove-io/gtfsrt-mqtt/internal/utils"
	"github.com/hove-io/gtfsrt-mqtt/internal/vehiclepositions"
)

const (
	URL_LOGIN      = "/auth/login"
	URL_TIMESERIES = "/plugins/telemetry/DEVICE/%s/values/timeseries"
)

/* ---------------------------------------------------------------------
// Telemetry source reading the latest position of each tracked device
--------------------------------------------------------------------- */
type Client struct {
	connector        *connectors.Connector
	vehiclePositions *vehiclepositions.VehiclePositions
	now              func() time.Time
}

func NewClient(connector *connectors.Connector) *Client {
	return &Client{
		connector:        connector,
		vehiclePositions: &vehiclepositions.VehiclePositions{},
		now:              time.Now,
	}
}

// Authenticate logs in and keeps the bearer token on the connector. A new
// token is requested on every call.
func (d *Client) Authenticate(ctx context.Context) (string, error) {
	login, err := utils.SendLoginRequest(ctx, d.connector.EndpointURL(URL_LOGIN), d.connector.GetUser(),
		d.connector.GetPassword(), d.connector.GetConnectionTimeout())
	if err != nil {
		d.connector.SetToken("")
		return "", &AuthError{Err: err}
	}
	token := utils.BearerToken(login.Token)
	d.connector.SetToken(token)
	return token, nil
}

// Refresh reloads every tracked device and replaces the cache with the
// devices that could be read. A device failing is skipped, a login failure
// leaves the cache untouched.
func (d *Client) Refresh(ctx context.Context) error {
	begin := time.Now()

	token, err := d.Authenticate(ctx)
	if err != nil {
		TelemetryLoadingErrors.Inc()
		return err
	}

	fetchedAt := d.now()
	deviceIDs := d.connector.GetDeviceIDs()
	samples := make([]vehiclepositions.VehicleSample, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		if ctx.Err() != nil {
			TelemetryLoadingErrors.Inc()
			return errors.Wrap(ctx.Err(), "refresh interrupted")
		}
		sample, err := d.FetchVehicle(ctx, id, token, fetchedAt)
		if err != nil {
			TelemetryDeviceErrors.WithLabelValues(errorKind(err)).Inc()
			logrus.WithField("device", id).Warn("Vehicle skipped: ", err)
			continue
		}
		samples = append(samples, *sample)
	}

	d.vehiclePositions.ReplaceVehiclePositions(samples, fetchedAt)
	TelemetryLoadingDuration.Observe(time.Since(begin).Seconds())
	logrus.Info("Vehicle positions updated from ThingsBoard, list size: ", len(samples))
	return nil
}

// FetchVehicle reads and parses the latest timeseries of one device.
func (d *Client) FetchVehicle(ctx context.Context, deviceID, token string,
	fetchedAt time.Time) (*vehiclepositions.VehicleSample, error) {
	callUrl := d.connector.EndpointURL(fmt.Sprintf(URL_TIMESERIES, deviceID))
	resp, err := utils.GetHttpResponse(ctx, callUrl, token, d.connector.GetHeader(),
		d.connector.GetConnectionTimeout())
	if err != nil {
		return nil, &FetchError{DeviceID: deviceID, Err: err}
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{DeviceID: deviceID, Err: err}
	}
	return ParseTimeseries(deviceID, body, fetchedAt)
}

// Snapshot returns the cached samples, sorted by device id.
func (d *Client) Snapshot() []vehiclepositions.VehicleSample {
	return d.vehiclePositions.GetVehiclePositions()
}

func (d *Client) GetVehiclePositions() *vehiclepositions.VehiclePositions {
	return d.vehiclePositions
}

// IsAuthenticated tells whether the last login succeeded.
func (d *Client) IsAuthenticated() bool {
	return d.connector.GetToken() != ""
}

func (d *Client) GetLastUpdate() time.Time {
	return d.vehiclePositions.GetLastVehiclePositionsDataUpdate()
}

func (d *Client) GetRefreshTime() string {
	return d.connector.GetRefreshTime().String()
}

func errorKind(err error) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return "parse"
	}
	return "fetch"
}
