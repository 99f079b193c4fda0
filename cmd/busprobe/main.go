// cmd/busprobe/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"smbus-go/algo/serialbridge"
	"smbus-go/config"
	"smbus-go/drivers/eeprom24"
	"smbus-go/drivers/lm75"
	"smbus-go/notify"
	"smbus-go/smbus"
)

// ---------- Configuration ----------

const (
	defaultBaud = 115200

	// How long to keep echoing bus lifecycle events after the scan.
	eventDrain = 250 * time.Millisecond
)

// ---------- Simulated bus for -demo ----------

// demoBus populates a mock with one sensor and one EEPROM so the full
// probe/attach/read path runs without hardware.
func demoBus() *smbus.NativeMock {
	mock := smbus.NewNativeMock("demo")
	sensor := mock.AddDevice(0x48)
	sensor.Regs[0x00] = []byte{0x19, 0x00} // 25.0 C, high byte first
	sensor.Regs[0x01] = []byte{0x00}
	rom := mock.AddDevice(0x50)
	rom.Regs[0x00] = []byte("busprobe demo rom")
	return mock
}

// ---------- Reporting ----------

func report(log *zap.Logger, a *smbus.Adapter) {
	for _, c := range a.Clients() {
		log.Info("client attached",
			zap.String("adapter", a.Name()),
			zap.String("driver", c.Driver().Name()),
			zap.String("addr", fmt.Sprintf("0x%02x", c.Addr())))

		switch c.Driver().Name() {
		case "lm75":
			dev, ok := lm75.DeviceOf(c)
			if !ok {
				continue
			}
			milli, err := dev.Temperature()
			if err != nil {
				log.Warn("temperature read failed", zap.Error(err))
				continue
			}
			log.Info("temperature", zap.Float64("celsius", float64(milli)/1000))

		case "eeprom24":
			dev, ok := eeprom24.DeviceOf(c)
			if !ok {
				continue
			}
			buf := make([]byte, smbus.BlockMax)
			n, err := dev.ReadAt(0x00, buf)
			if err != nil {
				log.Warn("eeprom read failed", zap.Error(err))
				continue
			}
			log.Info("eeprom contents", zap.ByteString("data", buf[:n]))
		}
	}
}

// ---------- Main ----------

func main() {
	var (
		cfgPath = flag.String("config", "", "YAML bus configuration file")
		port    = flag.String("port", "", "serial device of a bridge adapter")
		baud    = flag.Int("baud", defaultBaud, "serial baud rate")
		demo    = flag.Bool("demo", false, "run against a simulated bus")
	)
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "busprobe:", err)
		os.Exit(1)
	}
	defer log.Sync()

	hub := notify.NewHub(16)
	r := smbus.NewRegistry(smbus.WithLogger(log), smbus.WithHub(hub))

	// Echo lifecycle events while we work.
	for _, topic := range []notify.Topic{
		notify.T("adapter", "added"),
		notify.T("adapter", "removed"),
		notify.T("client", "attached"),
		notify.T("client", "detached"),
	} {
		sub := hub.Subscribe(topic)
		defer sub.Cancel()
		go func() {
			for ev := range sub.Channel() {
				log.Info("bus event", zap.String("topic", ev.Topic.String()))
			}
		}()
	}

	// Algorithms first, then adapters, then drivers; driver
	// registration probes every bus already present.
	switch {
	case *demo:
		mock := demoBus()
		if err := r.AddAlgorithm(mock); err != nil {
			log.Fatal("register algorithm", zap.Error(err))
		}
		a := smbus.NewAdapter("demo0", mock, smbus.AdapterConfig{})
		if err := r.AddAdapter(a); err != nil {
			log.Fatal("register adapter", zap.Error(err))
		}

	case *port != "":
		bridge, err := serialbridge.Open("serial0", *port, *baud)
		if err != nil {
			log.Fatal("open serial bridge", zap.Error(err))
		}
		defer bridge.Close()
		if err := r.AddAlgorithm(bridge); err != nil {
			log.Fatal("register algorithm", zap.Error(err))
		}
		a := smbus.NewAdapter(*port, bridge, smbus.AdapterConfig{})
		if err := r.AddAdapter(a); err != nil {
			log.Fatal("register adapter", zap.Error(err))
		}

	default:
		log.Fatal("one of -demo or -port is required")
	}

	// Optional config file adds further buses over registered
	// algorithms.
	if *cfgPath != "" {
		cfg, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatal("load config", zap.Error(err))
		}
		for _, bc := range cfg.Buses {
			algo, ok := r.AlgorithmByName(bc.Algorithm)
			if !ok {
				log.Fatal("unknown algorithm", zap.String("name", bc.Algorithm))
			}
			a := smbus.NewAdapter(bc.Name, algo, bc.AdapterConfig())
			if err := r.AddAdapter(a); err != nil {
				log.Fatal("register adapter", zap.Error(err))
			}
		}
	}

	for _, dr := range []smbus.Driver{lm75.NewDriver(), eeprom24.NewDriver()} {
		if err := r.AddDriver(dr); err != nil {
			log.Fatal("register driver", zap.Error(err))
		}
	}

	for _, a := range r.Adapters() {
		report(log, a)
	}

	time.Sleep(eventDrain)
}
