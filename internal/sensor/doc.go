// Package sensor samples temperature and humidity and publishes valid
// readings.
//
// A [Sensor] is the narrow driver interface. Three drivers are provided:
//   - [IIO]: the Linux industrial-I/O sysfs interface exposed by the kernel
//     dht11 driver (which also handles DHT22/AM2302 parts)
//   - [Modbus]: RS-485 temperature/humidity transmitters (XY-MD02 style,
//     two input registers scaled by 10)
//   - [Simulated]: a bounded random walk for development hosts
//
// The [Producer] reads the sensor on a fixed cadence, retries failed reads
// after a shorter fixed delay, drops out-of-range readings and hands the rest
// to a [Publisher] that never blocks.
//
// # Usage
//
//	drv, err := sensor.Open(cfg.Sensor)
//	if err != nil {
//	    return err
//	}
//	defer drv.Close()
//
//	p := sensor.NewProducer(drv, topic, sensor.ProducerConfig{
//	    Interval:      5 * time.Second,
//	    RetryInterval: 2 * time.Second,
//	})
//	p.SetLogger(logger)
//	return p.Run(ctx)
//
// # Thread Safety
//
// Drivers are used by a single producer goroutine. Reading is a value type.
package sensor
