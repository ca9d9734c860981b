package connectors

import (
	"net/url"
	"sync"
	"time"
)

// Header used by ThingsBoard to carry the JWT obtained at login.
const ThingsboardAuthHeader = "X-Authorization"

type Connector struct {
	url               url.URL
	user              string
	password          string
	token             string
	header            string
	deviceIDs         []string
	refreshTime       time.Duration
	connectionTimeout time.Duration
	mutex             sync.Mutex
}

func (d *Connector) GetUrl() url.URL {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.url
}

func (d *Connector) GetUser() string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.user
}

func (d *Connector) GetPassword() string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.password
}

func (d *Connector) GetToken() string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.token
}

func (d *Connector) SetToken(token string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.token = token
}

func (d *Connector) GetHeader() string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.header
}

// GetDeviceIDs returns a copy of the tracked device ids.
func (d *Connector) GetDeviceIDs() []string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	ids := make([]string, len(d.deviceIDs))
	copy(ids, d.deviceIDs)
	return ids
}

func (d *Connector) GetConnectionTimeout() time.Duration {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.connectionTimeout
}

func (d *Connector) GetRefreshTime() time.Duration {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.refreshTime
}

// EndpointURL joins a path below the connector base url, keeping any base path.
func (d *Connector) EndpointURL(path string) string {
	base := d.GetUrl()
	base.Path = singleJoiningSlash(base.Path, path)
	base.RawQuery = ""
	return base.String()
}

func singleJoiningSlash(a, b string) string {
	aslash := len(a) > 0 && a[len(a)-1] == '/'
	bslash := len(b) > 0 && b[0] == '/'
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash && b != "":
		return a + "/" + b
	}
	return a + b
}

func NewConnector(
	url url.URL,
	user string,
	password string,
	deviceIDs []string,
	refresh time.Duration,
	connectionTimeout time.Duration,
) *Connector {
	ids := make([]string, len(deviceIDs))
	copy(ids, deviceIDs)
	return &Connector{
		url:               url,
		user:              user,
		password:          password,
		header:            ThingsboardAuthHeader,
		deviceIDs:         ids,
		refreshTime:       refresh,
		connectionTimeout: connectionTimeout,
	}
}
