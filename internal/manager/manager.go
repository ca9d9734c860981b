package manager

import (
	"sync"

	"github.com/hove-io/gtfsrt-mqtt/internal/bridge"
	"github.com/hove-io/gtfsrt-mqtt/internal/broker"
	"github.com/hove-io/gtfsrt-mqtt/internal/scheduler"
	"github.com/hove-io/gtfsrt-mqtt/internal/thingsboard"
)

// Data manager for all apis
type DataManager struct {
	mutex             sync.RWMutex
	thingsboardClient *thingsboard.Client
	connection        *broker.Connection
	bridge            *bridge.Bridge
	scheduler         *scheduler.Scheduler
}

func (d *DataManager) SetThingsboardClient(client *thingsboard.Client) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.thingsboardClient = client
}

func (d *DataManager) GetThingsboardClient() *thingsboard.Client {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.thingsboardClient
}

func (d *DataManager) SetConnection(connection *broker.Connection) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.connection = connection
}

func (d *DataManager) GetConnection() *broker.Connection {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.connection
}

func (d *DataManager) SetBridge(bridge *bridge.Bridge) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.bridge = bridge
}

func (d *DataManager) GetBridge() *bridge.Bridge {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.bridge
}

func (d *DataManager) SetScheduler(scheduler *scheduler.Scheduler) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.scheduler = scheduler
}

func (d *DataManager) GetScheduler() *scheduler.Scheduler {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.scheduler
}
