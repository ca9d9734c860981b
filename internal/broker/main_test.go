package broker

import (
	"context"
	"flag"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ory/dockertest"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// port of the mosquitto container, empty when docker is not usable
var brokerPort string

func TestMain(m *testing.M) {
	flag.Parse() //required to get Short() from testing
	if testing.Short() {
		log.Warn("skipping test Docker in short mode.")
		os.Exit(m.Run())
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Warnf("Could not connect to docker, broker integration tests skipped: %s", err)
		os.Exit(m.Run())
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "eclipse-mosquitto",
		Tag:        "1.6",
	})
	if err != nil {
		log.Warnf("Could not start mosquitto, broker integration tests skipped: %s", err)
		os.Exit(m.Run())
	}
	port := resource.GetPort("1883/tcp")
	err = pool.Retry(func() error {
		client := mqtt.NewClient(mqtt.NewClientOptions().AddBroker("tcp://localhost:" + port))
		token := client.Connect()
		token.Wait()
		if token.Error() == nil {
			client.Disconnect(0)
		}
		return token.Error()
	})
	if err == nil {
		brokerPort = port
	} else {
		log.Warnf("Mosquitto never answered: %s", err)
	}

	code := m.Run()

	// You can't defer this because os.Exit doesn't care for defer
	if err := pool.Purge(resource); err != nil {
		log.Fatalf("Could not purge resource: %s", err)
	}
	os.Exit(code)
}

func Test_PublishToMosquitto(t *testing.T) {
	if brokerPort == "" {
		t.Skip("no mosquitto container available")
	}
	require := require.New(t)
	assert := assert.New(t)

	port, err := strconv.Atoi(brokerPort)
	require.Nil(err)
	config, err := NewConfig("localhost", WithPort(port), WithTLS(false, nil))
	require.Nil(err)
	conn := NewConnection(*config)

	var mutex sync.Mutex
	var received [][]byte
	subscriber := mqtt.NewClient(mqtt.NewClientOptions().AddBroker(config.BrokerURL()))
	token := subscriber.Connect()
	require.True(token.WaitTimeout(5 * time.Second))
	require.Nil(token.Error())
	defer subscriber.Disconnect(0)
	token = subscriber.Subscribe("/gtfsrt/vp/#", 0, func(_ mqtt.Client, msg mqtt.Message) {
		mutex.Lock()
		defer mutex.Unlock()
		received = append(received, msg.Payload())
	})
	require.True(token.WaitTimeout(5 * time.Second))
	require.Nil(token.Error())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	sched := newTestScheduler(t)
	go func() { done <- conn.Run(ctx, sched) }()
	require.Eventually(conn.IsConnected, 5*time.Second, 10*time.Millisecond)
	assert.Equal(2, sched.ActiveTasks())

	require.Nil(conn.Publish("/gtfsrt/vp/hb/veh-1", []byte("payload")))
	require.Eventually(func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(received) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.Nil(<-done)
	assert.Equal(Disconnected, conn.State())
	assert.Equal(0, sched.ActiveTasks())
}
