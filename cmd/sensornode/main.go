// sensornode - environmental sensor node
//
// Samples a temperature/humidity sensor, shows the latest values on a
// four-digit display and writes every reading to an InfluxDB v2 bucket in
// line protocol. Optional extras relay readings over MQTT, serve a status
// API and supervise the Wi-Fi association daemon.
//
// Every task runs in its own goroutine and shares nothing but the readings
// bus, so a slow or failing consumer never stalls sampling.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/knightpp/esp-sensor/internal/api"
	"github.com/knightpp/esp-sensor/internal/bus"
	"github.com/knightpp/esp-sensor/internal/delivery"
	"github.com/knightpp/esp-sensor/internal/display"
	"github.com/knightpp/esp-sensor/internal/infrastructure/config"
	"github.com/knightpp/esp-sensor/internal/infrastructure/influxdb"
	"github.com/knightpp/esp-sensor/internal/infrastructure/logging"
	"github.com/knightpp/esp-sensor/internal/infrastructure/metrics"
	"github.com/knightpp/esp-sensor/internal/infrastructure/mqtt"
	"github.com/knightpp/esp-sensor/internal/infrastructure/tsdb"
	"github.com/knightpp/esp-sensor/internal/link"
	"github.com/knightpp/esp-sensor/internal/relay"
	"github.com/knightpp/esp-sensor/internal/sensor"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled or a task
// fails. It returns nil on a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting sensornode",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	cfg.Node.ID = resolveNodeID(cfg.Node.ID)
	log = log.With("node_id", cfg.Node.ID)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	m := metrics.New()

	// Every subscription must exist before the producer publishes.
	topic := bus.New(bus.Config{Capacity: cfg.Bus.Capacity})
	subscribe := func(name string) (*bus.Subscription, error) {
		sub, err := topic.Subscribe(name)
		if err != nil {
			return nil, fmt.Errorf("subscribing %s: %w", name, err)
		}
		return sub, nil
	}

	drv, err := sensor.Open(sensorConfig(cfg))
	if err != nil {
		return fmt.Errorf("opening sensor: %w", err)
	}
	defer func() {
		if closeErr := drv.Close(); closeErr != nil {
			log.Error("error closing sensor", "error", closeErr)
		}
	}()
	log.Info("sensor opened", "driver", cfg.Sensor.Driver)

	producer := sensor.NewProducer(drv, topic, sensor.ProducerConfig{
		Interval:      cfg.GetSampleInterval(),
		RetryInterval: cfg.GetSensorRetryInterval(),
	})
	producer.SetLogger(log.Component("producer"))
	producer.SetRecorder(m)

	// Tasks start together once every component is built, so a late
	// construction error never leaves a goroutine running.
	var tasks []func(context.Context) error

	var deliveryLoop *delivery.Loop
	if cfg.Delivery.Enabled {
		sub, err := subscribe("delivery")
		if err != nil {
			return err
		}
		dialer, err := newDialer(cfg)
		if err != nil {
			return fmt.Errorf("creating %s dialer: %w", cfg.Delivery.Transport, err)
		}
		deliveryLoop = delivery.New(sub, dialer, delivery.Config{
			Record: delivery.RecordConfig{
				Measurement: cfg.Delivery.Measurement,
				Tags:        cfg.Delivery.Tags,
				Timestamp:   cfg.Delivery.Timestamp,
			},
			RetryInterval: cfg.GetDeliveryRetryInterval(),
			Timeout:       cfg.GetDeliveryTimeout(),
			BufferSize:    cfg.Delivery.BufferSize,
		})
		deliveryLoop.SetLogger(log.Component("delivery"))
		deliveryLoop.SetRecorder(m)
		tasks = append(tasks, deliveryLoop.Run)
		log.Info("delivery enabled",
			"transport", cfg.Delivery.Transport,
			"url", cfg.Delivery.URL,
			"bucket", cfg.Delivery.Bucket,
		)
	} else {
		log.Info("delivery disabled")
	}

	if cfg.Display.Enabled {
		sub, err := subscribe("display")
		if err != nil {
			return err
		}
		renderer, closeRenderer, err := openRenderer(cfg.Display, log.Component("display"))
		if err != nil {
			return fmt.Errorf("opening display: %w", err)
		}
		defer closeRenderer()
		loop := display.NewLoop(sub, renderer)
		loop.SetLogger(log.Component("display"))
		loop.SetRecorder(m)
		tasks = append(tasks, loop.Run)
		log.Info("display enabled", "driver", cfg.Display.Driver)
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, cfg.Node.ID)
		if err != nil {
			// The relay is optional: keep sampling without it.
			log.Warn("MQTT unavailable, relay disabled", "error", err)
			mqttClient = nil
		} else {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
			mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

			sub, err := subscribe("relay")
			if err != nil {
				return err
			}
			r := relay.New(sub, mqttClient, mqttClient.Topics().Reading(), cfg.Node.ID)
			r.SetLogger(log.Component("relay"))
			r.SetRecorder(m)
			tasks = append(tasks, r.Run)
			log.Info("MQTT relay enabled",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", mqttClient.ClientID(),
				"topic", mqttClient.Topics().Reading(),
			)
		}
	}

	var supervisor *link.Supervisor
	if cfg.Network.Supervisor.Enabled {
		supervisor = link.NewSupervisor(link.FromConfig(cfg.Network.Supervisor))
		supervisor.SetLogger(log.Component("link"))
		tasks = append(tasks, func(ctx context.Context) error {
			// Losing Wi-Fi supervision must not stop sampling or the display.
			if err := supervisor.Run(ctx); err != nil {
				log.Error("link supervisor failed", "error", err)
			}
			return nil
		})
	}

	if cfg.API.Enabled {
		sub, err := subscribe("api")
		if err != nil {
			return err
		}
		deps := api.Deps{
			Config:   cfg.API,
			Logger:   log.Component("api"),
			Readings: topic,
			Feed:     sub,
			Metrics:  m,
			NodeID:   cfg.Node.ID,
			Version:  version,
		}
		// Typed nils would defeat the server's optional-dependency checks.
		if deliveryLoop != nil {
			deps.Delivery = deliveryLoop
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		if supervisor != nil {
			deps.Link = supervisor
		}
		srv, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		tasks = append(tasks, srv.Run)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error { return task(gctx) })
	}
	g.Go(func() error {
		defer topic.Close()
		return producer.Run(gctx)
	})

	log.Info("initialisation complete, waiting for shutdown signal")

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("sensornode stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SENSORNODE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SENSORNODE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// resolveNodeID returns configured, else the hostname, else a random ID.
func resolveNodeID(configured string) string {
	if configured != "" {
		return configured
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "sensornode-" + uuid.NewString()[:8]
}

func sensorConfig(cfg *config.Config) sensor.Config {
	mb := cfg.Sensor.Modbus
	return sensor.Config{
		Driver: cfg.Sensor.Driver,
		IIO: sensor.IIOConfig{
			Device: cfg.Sensor.IIO.Device,
		},
		Modbus: sensor.ModbusConfig{
			Device:   mb.Device,
			BaudRate: mb.BaudRate,
			DataBits: mb.DataBits,
			Parity:   mb.Parity,
			StopBits: mb.StopBits,
			SlaveID:  byte(mb.SlaveID),    // #nosec G115 -- validated 1..247
			Address:  uint16(mb.Address), // #nosec G115 -- validated 0..65534
			Scale:    float32(mb.Scale),
			Timeout:  cfg.GetModbusTimeout(),
		},
		Simulated: sensor.SimulatedConfig{
			Seed: cfg.Sensor.Simulated.Seed,
		},
	}
}

// newDialer picks the delivery transport.
func newDialer(cfg *config.Config) (delivery.Dialer, error) {
	d := cfg.Delivery
	switch d.Transport {
	case "influxdb":
		return influxdb.NewDialer(influxdb.Config{
			URL:     d.URL,
			Token:   d.Token,
			Org:     d.Org,
			Bucket:  d.Bucket,
			Timeout: cfg.GetDeliveryTimeout(),
		}), nil
	default:
		return tsdb.NewDialer(tsdb.Config{
			URL:     d.URL,
			Token:   d.Token,
			Org:     d.Org,
			Bucket:  d.Bucket,
			Timeout: cfg.GetDeliveryTimeout(),
		})
	}
}

// openRenderer returns the configured renderer and its cleanup.
func openRenderer(cfg config.DisplayConfig, log *logging.Logger) (display.Renderer, func(), error) {
	if cfg.Driver == "console" {
		return display.NewConsole(log), func() {}, nil
	}

	dev, err := display.OpenTM1637(cfg.ClkPin, cfg.DioPin)
	if err != nil {
		return nil, nil, err
	}
	return dev, func() {
		if err := dev.Close(); err != nil {
			log.Error("error closing display", "error", err)
		}
	}, nil
}
