// Command traffic-light drives a three-lamp traffic signal from GPIO outputs
// and exposes its power switch over a control file, HTTP and MQTT.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/traffic-light/internal/control"
	"github.com/sweeney/traffic-light/internal/gpio"
	"github.com/sweeney/traffic-light/internal/lifecycle"
	"github.com/sweeney/traffic-light/internal/logic"
	"github.com/sweeney/traffic-light/internal/metrics"
	"github.com/sweeney/traffic-light/internal/mqtt"
	"github.com/sweeney/traffic-light/internal/scheduler"
	"github.com/sweeney/traffic-light/internal/status"
	"github.com/sweeney/traffic-light/internal/web"
)

// eventBuffer bounds phase changes queued between the scheduler and the
// publishing loop. A full buffer drops the change rather than stalling the
// scheduler.
const eventBuffer = 64

func main() {
	chip := flag.String("chip", gpio.DefaultChip, "GPIO chip name or label")
	pinRed := flag.Int("pin-red", gpio.DefaultPinRed, "BCM pin number for the red lamp")
	pinYellow := flag.Int("pin-yellow", gpio.DefaultPinYellow, "BCM pin number for the yellow lamp")
	pinGreen := flag.Int("pin-green", gpio.DefaultPinGreen, "BCM pin number for the green lamp")
	controlPath := flag.String("control", control.DefaultPath, "Power control file (empty to disable)")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address (empty to disable)")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	printState := flag.Bool("print-state", false, "Print current state of a running instance and exit")
	armed := flag.Bool("armed", false, "Arm the signal at startup")

	flag.Parse()

	cfg := status.Config{
		Chip:        *chip,
		PinRed:      *pinRed,
		PinYellow:   *pinYellow,
		PinGreen:    *pinGreen,
		ControlPath: *controlPath,
		Broker:      *broker,
		HTTPAddr:    *httpAddr,
	}

	if *printState {
		if err := printCurrentState(os.Stdout, cfg); err != nil {
			log.Fatalf("fatal: %v", err)
		}
		return
	}

	if err := run(cfg, *armed); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg status.Config, armed bool) error {
	tracker := status.NewTracker(time.Now(), cfg)
	collector := metrics.New(prometheus.NewRegistry())

	events := make(chan logic.Event, eventBuffer)
	listener := func(e logic.Event) {
		tracker.Record(e)
		collector.Record(e)
		select {
		case events <- e:
		default:
			log.Printf("event: dropped %s -> %s, publisher behind", e.From, e.To)
		}
	}

	mod, err := lifecycle.Load(lifecycle.Config{
		Chip:             cfg.Chip,
		Pins:             gpio.Pins{Red: cfg.PinRed, Yellow: cfg.PinYellow, Green: cfg.PinGreen},
		ControlPath:      cfg.ControlPath,
		SchedulerOptions: []scheduler.Option{scheduler.WithListener(listener)},
	})
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	defer func() {
		if err := mod.Unload(); err != nil {
			log.Printf("unload: %v", err)
		}
	}()
	sched := mod.Scheduler()

	var publisher mqtt.Publisher = noopPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if cfg.Broker != "" {
		p := mqtt.NewRealPublisher(cfg.Broker, func(payload string) {
			if control.ApplyText(sched, payload) {
				log.Printf("mqtt: power=%s from %s", control.FormatPower(sched.Powered()), mqtt.TopicPowerSet)
			}
		})
		defer p.Close()
		publisher = p
		mqttStatus = p
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	}
	if err := publisher.PublishPower(false); err != nil {
		log.Printf("failed to publish power state: %v", err)
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, sched, collector.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	if armed {
		sched.Arm()
	}

	log.Printf("started: chip=%s control=%s broker=%s armed=%v", cfg.Chip, cfg.ControlPath, cfg.Broker, armed)
	notify(daemon.SdNotifyReady)
	defer notify(daemon.SdNotifyStopping)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(events, sigCh, publisher, mqttStatus, tracker)
}

func runLoop(events <-chan logic.Event, sig <-chan os.Signal, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: time.Now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case e := <-events:
			log.Printf("event: %s %s -> %s", mqtt.EventName(e), e.From, e.To)
			if err := publisher.Publish(e); err != nil {
				log.Printf("publish error: %v", err)
			}

			if mqtt.ChangesPower(e) {
				if err := publisher.PublishPower(e.Powered); err != nil {
					log.Printf("publish power error: %v", err)
				}
			}

			if tracker != nil && mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
		}
	}
}

func notify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Printf("systemd notify: %v", err)
	}
}

// printCurrentState reports the power state from the control file and, if
// the HTTP surface is enabled, the current phase from a running instance.
func printCurrentState(w io.Writer, cfg status.Config) error {
	if cfg.ControlPath == "" {
		return fmt.Errorf("print state: control file disabled")
	}
	data, err := os.ReadFile(cfg.ControlPath)
	if err != nil {
		return fmt.Errorf("read control file: %w", err)
	}
	on, _ := control.ParsePower(string(data))

	phase := "unknown"
	if cfg.HTTPAddr != "" {
		if p, err := fetchPhase(cfg.HTTPAddr); err != nil {
			log.Printf("print state: %v", err)
		} else {
			phase = p
		}
	}

	fmt.Fprintf(w, "power: %s, phase: %s\n", control.FormatPower(on), phase)
	return nil
}

func fetchPhase(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("parse http address: %w", err)
	}
	if host == "" {
		host = "localhost"
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + net.JoinHostPort(host, port) + "/index.json")
	if err != nil {
		return "", fmt.Errorf("fetch status: %w", err)
	}
	defer resp.Body.Close()

	var doc status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("decode status: %w", err)
	}
	return doc.Status.Phase, nil
}

// noopPublisher stands in when MQTT is disabled.
type noopPublisher struct{}

func (noopPublisher) Publish(logic.Event) error {
	return nil
}

func (noopPublisher) PublishSystem(mqtt.SystemEvent) error {
	return nil
}

func (noopPublisher) PublishPower(bool) error {
	return nil
}

func (noopPublisher) Close() error {
	return nil
}
