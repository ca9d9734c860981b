package bridge

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hove-io/gtfsrt-mqtt/internal/geofence"
	"github.com/hove-io/gtfsrt-mqtt/internal/gtfsrt"
	"github.com/hove-io/gtfsrt-mqtt/internal/vehiclepositions"
)

var fetchedAt = time.Date(2021, 1, 25, 10, 0, 0, 0, time.UTC)
var publishedAt = time.Date(2021, 1, 25, 10, 0, 7, 0, time.UTC)

var depot = geofence.NewBoundingBox(
	geofence.Point{Latitude: 48.64936, Longitude: 8.81578},
	geofence.Point{Latitude: 48.64853, Longitude: 8.81885},
)

type fakeSource struct {
	mutex      sync.Mutex
	samples    []vehiclepositions.VehicleSample
	err        error
	refreshes  int
	refreshCtx context.Context
}

func (f *fakeSource) Refresh(ctx context.Context) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.refreshes++
	f.refreshCtx = ctx
	return f.err
}

func (f *fakeSource) Snapshot() []vehiclepositions.VehicleSample {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]vehiclepositions.VehicleSample(nil), f.samples...)
}

type message struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mutex     sync.Mutex
	connected bool
	failOn    string
	messages  []message
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.failOn != "" && strings.Contains(topic, f.failOn) {
		return errors.Errorf("publish on %s: broken pipe", topic)
	}
	f.messages = append(f.messages, message{topic, payload})
	return nil
}

func (f *fakePublisher) IsConnected() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.connected
}

func (f *fakePublisher) binaryMessages() []message {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	var result []message
	for _, m := range f.messages {
		if strings.HasPrefix(m.topic, "/gtfsrt/") {
			result = append(result, m)
		}
	}
	return result
}

func sample(id string, lat, lon float64, pax int) vehiclepositions.VehicleSample {
	return vehiclepositions.VehicleSample{
		ID: id, Latitude: lat, Longitude: lon, PassengerCount: pax, FetchedAt: fetchedAt,
	}
}

func newTestBridge(t *testing.T, source *fakeSource, publisher *fakePublisher, config Config) *Bridge {
	b, err := New(source, publisher, config)
	require.Nil(t, err)
	return b
}

func Test_PublishOnceEndToEnd(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	source := &fakeSource{samples: []vehiclepositions.VehicleSample{sample("veh-1", 48.649, 8.817, 30)}}
	publisher := &fakePublisher{connected: true}
	config := DefaultConfig()
	b := newTestBridge(t, source, publisher, config)

	assert.Equal(1, b.PublishOnce(context.Background(), publishedAt))

	require.Len(publisher.messages, 2)
	binary := publisher.messages[0]
	assert.Equal("/gtfsrt/vp/hb/1/1/bus//0/unknown-headsign/unknown-trip-id/unknown-next-stop/00:00/veh-1/0/0",
		binary.topic)
	// the vehicle id only shows up in its own segment
	segments := strings.Split(strings.TrimPrefix(binary.topic, "/gtfsrt/"), "/")
	for i, segment := range segments {
		if i == 11 {
			assert.Equal("veh-1", segment)
		} else {
			assert.NotContains(segment, "veh-1")
		}
	}

	fm, err := gtfsrt.Parse(binary.payload)
	require.Nil(err)
	assert.Equal(gtfs.FeedHeader_DIFFERENTIAL, fm.GetHeader().GetIncrementality())
	assert.Equal(uint64(publishedAt.Unix()), fm.GetHeader().GetTimestamp())
	require.Len(fm.GetEntity(), 1)
	entity := fm.GetEntity()[0]
	assert.Equal("veh-1", entity.GetId())
	assert.Equal("veh-1", entity.GetVehicle().GetVehicle().GetId())
	assert.Equal(float32(48.649), entity.GetVehicle().GetPosition().GetLatitude())
	assert.Equal(float32(8.817), entity.GetVehicle().GetPosition().GetLongitude())
	// 30 out of 60 is 50%, the first value outside MANY_SEATS_AVAILABLE
	assert.Equal(gtfs.VehiclePosition_FEW_SEATS_AVAILABLE, entity.GetVehicle().GetOccupancyStatus())

	mirror := publisher.messages[1]
	assert.Equal("/json/vp/veh-1", mirror.topic)
	var decoded map[string]interface{}
	require.Nil(json.Unmarshal(mirror.payload, &decoded))
	assert.Contains(string(mirror.payload), `"FEW_SEATS_AVAILABLE"`)
}

func Test_PublishOnceOccupancyBoundary(t *testing.T) {
	source := &fakeSource{samples: []vehiclepositions.VehicleSample{
		sample("below", 48.7, 8.9, 29),
		sample("at", 48.7, 8.9, 30),
	}}
	publisher := &fakePublisher{connected: true}
	config := DefaultConfig()
	config.JSONMirror = false
	b := newTestBridge(t, source, publisher, config)

	require.Equal(t, 2, b.PublishOnce(context.Background(), publishedAt))
	messages := publisher.binaryMessages()
	require.Len(t, messages, 2)

	expected := []gtfs.VehiclePosition_OccupancyStatus{
		gtfs.VehiclePosition_MANY_SEATS_AVAILABLE,
		gtfs.VehiclePosition_FEW_SEATS_AVAILABLE,
	}
	for i, m := range messages {
		fm, err := gtfsrt.Parse(m.payload)
		require.Nil(t, err)
		assert.Equal(t, expected[i], fm.GetEntity()[0].GetVehicle().GetOccupancyStatus())
	}
}

func Test_PublishOnceSuppressesDepot(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	source := &fakeSource{samples: []vehiclepositions.VehicleSample{
		sample("parked", 48.649, 8.817, 0),
		sample("edge", 48.64853, 8.81578, 0),
		sample("running", 48.7, 8.9, 12),
	}}
	publisher := &fakePublisher{connected: true}
	config := DefaultConfig()
	config.Geofence = depot
	b := newTestBridge(t, source, publisher, config)

	assert.Equal(1, b.PublishOnce(context.Background(), publishedAt))
	messages := publisher.binaryMessages()
	require.Len(messages, 1)
	assert.True(strings.Contains(messages[0].topic, "/running/"))
	for _, m := range publisher.messages {
		assert.NotContains(m.topic, "parked")
		assert.NotContains(m.topic, "edge")
	}
}

func Test_PublishOnceSkipsWhenDisconnected(t *testing.T) {
	source := &fakeSource{samples: []vehiclepositions.VehicleSample{sample("veh-1", 48.7, 8.9, 1)}}
	publisher := &fakePublisher{connected: false}
	b := newTestBridge(t, source, publisher, DefaultConfig())

	assert.Equal(t, 0, b.PublishOnce(context.Background(), publishedAt))
	assert.Empty(t, publisher.messages)
}

func Test_PublishOnceIsolatesFailures(t *testing.T) {
	source := &fakeSource{samples: []vehiclepositions.VehicleSample{
		sample("veh-1", 48.7, 8.9, 1),
		sample("veh-2", 48.7, 8.9, 2),
		sample("veh-3", 48.7, 8.9, 3),
	}}
	publisher := &fakePublisher{connected: true, failOn: "/veh-2/"}
	b := newTestBridge(t, source, publisher, DefaultConfig())

	assert.Equal(t, 2, b.PublishOnce(context.Background(), publishedAt))
	assert.Len(t, publisher.binaryMessages(), 2)
}

func Test_PublishOnceMirrorFailureStillCounts(t *testing.T) {
	source := &fakeSource{samples: []vehiclepositions.VehicleSample{sample("veh-1", 48.7, 8.9, 1)}}
	publisher := &fakePublisher{connected: true, failOn: "/json/"}
	b := newTestBridge(t, source, publisher, DefaultConfig())

	assert.Equal(t, 1, b.PublishOnce(context.Background(), publishedAt))
	assert.Len(t, publisher.binaryMessages(), 1)
}

func Test_PublishOnceStopsOnCancel(t *testing.T) {
	source := &fakeSource{samples: []vehiclepositions.VehicleSample{sample("veh-1", 48.7, 8.9, 1)}}
	publisher := &fakePublisher{connected: true}
	b := newTestBridge(t, source, publisher, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, b.PublishOnce(ctx, publishedAt))
	assert.Empty(t, publisher.messages)
}

func Test_RefreshOnce(t *testing.T) {
	source := &fakeSource{err: errors.New("thingsboard authentication: 401")}
	b := newTestBridge(t, source, &fakePublisher{}, DefaultConfig())

	ctx := context.Background()
	b.RefreshOnce(ctx)
	b.RefreshOnce(ctx)
	assert.Equal(t, 2, source.refreshes)
	assert.Equal(t, ctx, source.refreshCtx)
}

func Test_New(t *testing.T) {
	assert := assert.New(t)

	_, err := New(nil, &fakePublisher{}, DefaultConfig())
	assert.NotNil(err)

	config := DefaultConfig()
	config.Capacity = 0
	_, err = New(&fakeSource{}, &fakePublisher{}, config)
	assert.EqualError(err, "vehicle capacity must be positive, got 0")

	config = DefaultConfig()
	config.PublishInterval = 0
	_, err = New(&fakeSource{}, &fakePublisher{}, config)
	assert.NotNil(err)
}

func Test_Tasks(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	source := &fakeSource{}
	config := DefaultConfig()
	config.RefreshInterval = 5 * time.Millisecond
	config.PublishInterval = time.Hour
	b := newTestBridge(t, source, &fakePublisher{}, config)

	tasks := b.Tasks()
	require.Len(tasks, 2)
	assert.Equal(RefreshTaskName, tasks[0].Name)
	assert.Equal(5*time.Millisecond, tasks[0].Interval)
	assert.Equal(PublishTaskName, tasks[1].Name)
	assert.Equal(time.Hour, tasks[1].Interval)

	sched, err := b.Scheduler()
	require.Nil(err)
	handle := sched.Start(context.Background())
	require.Eventually(func() bool {
		source.mutex.Lock()
		defer source.mutex.Unlock()
		return source.refreshes >= 2
	}, time.Second, time.Millisecond)
	handle.Cancel()
	assert.Equal(0, sched.ActiveTasks())
}

func Test_VehiclePositionsAPI(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	source := &fakeSource{}
	config := DefaultConfig()
	config.Geofence = depot
	b := newTestBridge(t, source, &fakePublisher{}, config)

	c, engine := gin.CreateTestContext(httptest.NewRecorder())
	AddVehiclePositionsEntryPoint(engine, b)

	// Request without data
	response := VehiclePositionsResponse{}
	c.Request = httptest.NewRequest("GET", "/vehicle_positions", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, c.Request)
	require.Equal(503, w.Code)
	require.Nil(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(response.VehiclePositions, 0)
	assert.Equal("No data loaded", response.Error)

	source.samples = []vehiclepositions.VehicleSample{
		sample("parked", 48.649, 8.817, 0),
		sample("running", 48.7, 8.9, 54),
	}

	response = VehiclePositionsResponse{}
	c.Request = httptest.NewRequest("GET", "/vehicle_positions", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, c.Request)
	require.Equal(200, w.Code)
	require.Nil(json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(response.VehiclePositions, 2)
	assert.Empty(response.Error)
	assert.True(response.VehiclePositions[0].Suppressed)
	assert.Equal("MANY_SEATS_AVAILABLE", response.VehiclePositions[0].Occupancy)

	running := response.VehiclePositions[1]
	assert.Equal("running", running.VehicleID)
	assert.False(running.Suppressed)
	assert.Equal("STANDING_ROOM_ONLY", running.Occupancy)
	assert.InDelta(90.0, running.OccupancyPercent, 1e-9)
	assert.Equal(fetchedAt, running.FetchedAt)

	response = VehiclePositionsResponse{}
	c.Request = httptest.NewRequest("GET", "/vehicle_positions?vehicle_id[]=running", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, c.Request)
	require.Equal(200, w.Code)
	require.Nil(json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(response.VehiclePositions, 1)
	assert.Equal("running", response.VehiclePositions[0].VehicleID)
}

func Test_VehiclePositionsAPIPagination(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	source := &fakeSource{samples: []vehiclepositions.VehicleSample{
		sample("veh-1", 48.7, 8.9, 1),
		sample("veh-2", 48.7, 8.9, 2),
		sample("veh-3", 48.7, 8.9, 3),
	}}
	config := DefaultConfig()
	config.Geofence = depot
	b := newTestBridge(t, source, &fakePublisher{}, config)

	c, engine := gin.CreateTestContext(httptest.NewRecorder())
	AddVehiclePositionsEntryPoint(engine, b)

	response := VehiclePositionsResponse{}
	c.Request = httptest.NewRequest("GET", "/vehicle_positions?count=2&start_page=1", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, c.Request)
	require.Equal(200, w.Code)
	require.Nil(json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(response.VehiclePositions, 1)
	assert.Equal("veh-3", response.VehiclePositions[0].VehicleID)
	assert.Equal(1, response.Paginate.StartPage)
	assert.Equal(1, response.Paginate.ItemsOnPage)
	assert.Equal(2, response.Paginate.ItemsPerPage)
	assert.Equal(3, response.Paginate.TotalResult)
	// about 8 km north east of the depot
	assert.InDelta(8321, response.VehiclePositions[0].DepotDistance, 1)
}
