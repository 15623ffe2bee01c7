// Package bus broadcasts sensor readings from one producer to a fixed set
// of consumers.
//
// Every subscription owns a bounded ring buffer. Publish never waits for a
// consumer: when a subscriber's buffer is full the oldest reading is dropped
// and counted. The next call to Next on that subscription reports the gap
// once as a Lagged outcome, then resumes with the oldest reading still
// buffered. Subscribers never affect each other or the producer.
//
// The topic also keeps the most recent reading (single-slot history) for
// consumers that only want the current value.
//
// # Usage
//
//	topic := bus.New(bus.Config{Capacity: 4})
//	delivery, _ := topic.Subscribe("delivery")
//	display, _ := topic.Subscribe("display")
//
//	go func() {
//	    for {
//	        out, err := delivery.Next(ctx)
//	        if err != nil {
//	            return
//	        }
//	        switch out.Kind {
//	        case bus.Delivered:
//	            send(out.Reading)
//	        case bus.Lagged:
//	            log.Warn("lagged", "missed", out.Missed)
//	        }
//	    }
//	}()
//
//	topic.Publish(reading)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Subscriptions are created at
// startup: Subscribe fails once the first reading has been published. Each
// Subscription is meant to be drained by one goroutine.
package bus
