// Command meshtastic-watcher periodically simulates a button press
// toward a Meshtastic node over GPIO, gated behind a software
// undervoltage lockout, and publishes pulse/power events to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Mickyleitor/meshtastic-watcher/internal/hw"
	"github.com/Mickyleitor/meshtastic-watcher/internal/logic"
	"github.com/Mickyleitor/meshtastic-watcher/internal/mqtt"
	"github.com/Mickyleitor/meshtastic-watcher/internal/status"
	"github.com/Mickyleitor/meshtastic-watcher/internal/web"
)

// DefaultADCDir is the IIO device exposing the supply-rail channel.
const DefaultADCDir = "/sys/bus/iio/devices/iio:device0"

func main() {
	tick := flag.Duration("tick", 30*time.Second, "Tick period")
	triggerTicks := flag.Uint("trigger-ticks", logic.DefaultTriggerTicks, "Ticks between automatic pulses")
	pulse := flag.Duration("pulse", logic.DefaultPulseDuration, "Pulse duration")
	debounceTicks := flag.Uint("debounce-ticks", logic.DefaultDebounceTicks, "Quiet ticks after an accepted button press")
	inhibitTicks := flag.Uint("inhibit-ticks", logic.DefaultInhibitTicks, "Grace ticks after boot or UVLO recovery")
	checkTicks := flag.Uint("check-ticks", logic.DefaultCheckTicks, "Ticks between supply-voltage checks")
	confirm := flag.Int("uvlo-confirm", logic.DefaultConfirmSamples, "Consecutive samples required to leave UVLO")
	rise := flag.Int("uvlo-rise-mv", logic.DefaultRiseMillivolts, "UVLO rise threshold (mV)")
	fall := flag.Int("uvlo-fall-mv", logic.DefaultFallMillivolts, "UVLO fall threshold (mV)")
	chip := flag.String("chip", hw.DefaultChip, "GPIO chip name")
	pinOut := flag.Int("pin-out", hw.DefaultPinOutput, "BCM pin of the press-simulation output")
	pinBtn := flag.Int("pin-button", hw.DefaultPinButton, "BCM pin of the local button")
	adcDir := flag.String("adc-dir", DefaultADCDir, "IIO device directory for the supply ADC")
	adcChannel := flag.Int("adc-channel", 0, "IIO voltage channel number")
	adcScale := flag.Float64("adc-scale", 0, "ADC scale in mV/LSB (0 reads it from sysfs)")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	printVoltage := flag.Bool("print-voltage", false, "Print the current supply voltage and exit")

	flag.Parse()

	cfg := logic.Config{
		TriggerTicks:   uint32(*triggerTicks),
		DebounceTicks:  uint32(*debounceTicks),
		InhibitTicks:   uint32(*inhibitTicks),
		CheckTicks:     uint32(*checkTicks),
		ConfirmSamples: *confirm,
		RiseMillivolts: *rise,
		FallMillivolts: *fall,
		PulseDuration:  *pulse,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	opts := runOptions{
		cfg:        cfg,
		tick:       *tick,
		chip:       *chip,
		pinOut:     *pinOut,
		pinBtn:     *pinBtn,
		adcDir:     *adcDir,
		adcChannel: *adcChannel,
		adcScale:   *adcScale,
		broker:     *broker,
		heartbeat:  *heartbeat,
		httpAddr:   *httpAddr,
	}
	if err := run(opts, *printVoltage); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

type runOptions struct {
	cfg        logic.Config
	tick       time.Duration
	chip       string
	pinOut     int
	pinBtn     int
	adcDir     string
	adcChannel int
	adcScale   float64
	broker     string
	heartbeat  time.Duration
	httpAddr   string
}

func run(opts runOptions, printVoltage bool) error {
	sampler, err := hw.NewIIOSampler(opts.adcDir, opts.adcChannel, opts.adcScale)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer sampler.Close()

	// Print voltage mode
	if printVoltage {
		mv, err := sampler.ReadMillivolts()
		if err != nil {
			return fmt.Errorf("read supply voltage: %w", err)
		}
		fmt.Printf("supply: %d mV\n", mv)
		return nil
	}

	output, err := hw.NewRealOutput(opts.chip, opts.pinOut)
	if err != nil {
		return fmt.Errorf("init output pin: %w", err)
	}
	defer output.Close()

	button, err := hw.NewRealButton(opts.chip, opts.pinBtn)
	if err != nil {
		return fmt.Errorf("init button pin: %w", err)
	}
	defer button.Close()

	publisher := mqtt.NewRealPublisher(opts.broker)
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:         opts.tick.Milliseconds(),
		PulseMs:        opts.cfg.PulseDuration.Milliseconds(),
		HeartbeatMs:    opts.heartbeat.Milliseconds(),
		TriggerTicks:   opts.cfg.TriggerTicks,
		DebounceTicks:  opts.cfg.DebounceTicks,
		InhibitTicks:   opts.cfg.InhibitTicks,
		CheckTicks:     opts.cfg.CheckTicks,
		ConfirmSamples: opts.cfg.ConfirmSamples,
		RiseMillivolts: opts.cfg.RiseMillivolts,
		FallMillivolts: opts.cfg.FallMillivolts,
		Broker:         opts.broker,
		HTTPAddr:       opts.httpAddr,
	})

	// The core: shared state plus its three contexts.
	st := logic.NewState()
	events := make(chan logic.Event, 16)
	wakeCh := make(chan struct{}, 1)
	actuator := logic.NewActuator(output, time.Sleep)
	supervisor := logic.NewSupervisor(opts.cfg, st, sampler, time.Now, events)
	dispatcher := logic.NewDispatcher(opts.cfg, st, actuator, time.Now, events, wakeCh)
	gate := logic.NewGate(opts.cfg, st, actuator, time.Now, events, wakeCh)

	// Start HTTP status server
	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", opts.httpAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Publish startup event with full status snapshot. The power state
	// in it is the boot state: locked out until proven otherwise.
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	log.Printf("started: tick=%v trigger=%d ticks pulse=%v uvlo=%d-%d mV broker=%s",
		opts.tick, opts.cfg.TriggerTicks, opts.cfg.PulseDuration,
		opts.cfg.FallMillivolts, opts.cfg.RiseMillivolts, opts.broker)

	// Power-good gate: no interrupts, no pulses, until the supply has
	// proven itself. A signal during the gate exits cleanly.
	if err := bootGate(opts, supervisor, sigCh); err != nil {
		log.Printf("interrupted while waiting for power good, shutting down")
		return nil
	}
	log.Printf("supply confirmed good, entering supervised operation")

	ticker := time.NewTicker(opts.tick)
	defer ticker.Stop()

	return runLoop(loopDeps{
		st:         st,
		dispatcher: dispatcher,
		gate:       gate,
		supervisor: supervisor,
		actuator:   actuator,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		heartbeat:  opts.heartbeat,
		now:        time.Now,
		tick:       ticker.C,
		edges:      button.Events(),
		wake:       wakeCh,
		events:     events,
		sig:        sigCh,
	})
}

// bootGate runs the blocking power-good wait, pausing one check
// interval between samples. It returns an error only if a signal
// arrives first.
func bootGate(opts runOptions, supervisor *logic.Supervisor, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sig:
			cancel()
		case <-done:
		}
	}()

	pauseFor := opts.tick * time.Duration(opts.cfg.CheckTicks)
	pause := func() {
		select {
		case <-time.After(pauseFor):
		case <-ctx.Done():
		}
	}
	return supervisor.WaitUntilPowerGood(ctx, pause)
}

// loopDeps carries everything runLoop needs; tests substitute fakes.
type loopDeps struct {
	st         *logic.State
	dispatcher *logic.Dispatcher
	gate       *logic.Gate
	supervisor *logic.Supervisor
	actuator   *logic.Actuator
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	heartbeat  time.Duration
	now        func() time.Time
	tick       <-chan time.Time
	edges      <-chan time.Time
	wake       <-chan struct{}
	events     <-chan logic.Event
	sig        <-chan os.Signal
}

// runLoop is the supervisory main loop plus the interrupt goroutine.
//
// The interrupt goroutine serializes the two interrupt sources (tick
// and button edge) and never performs the slow voltage sample. The
// main loop sleeps on its wake/event/signal channels and handles the
// deferred work: clear the check flag, sample, apply hysteresis, and
// force the line idle whenever the rail is not trusted.
func runLoop(d loopDeps) error {
	stopIRQ := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		edges := d.edges
		for {
			select {
			case <-stopIRQ:
				return
			case <-d.tick:
				if err := d.dispatcher.Tick(); err != nil {
					log.Printf("tick: %v", err)
				}
			case _, ok := <-edges:
				if !ok {
					edges = nil // closed edge source; block forever
					continue
				}
				if err := d.gate.OnEdge(); err != nil {
					log.Printf("button: %v", err)
				}
			}
		}
	}()
	defer func() {
		close(stopIRQ)
		wg.Wait()
	}()

	d.tracker.Update(d.st.Power(), d.st.TickCount(), d.st.InhibitRemaining(), d.st.DebounceRemaining())
	lastHeartbeat := d.now()

	for {
		select {
		case s := <-d.sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: d.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if d.mqttStatus != nil {
				d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
			}
			snap := d.tracker.Snapshot()
			event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			if err := d.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case ev := <-d.events:
			log.Printf("event: %s%s", ev.Type, voltageSuffix(ev))
			d.tracker.RecordEvent(ev)
			if err := d.publisher.Publish(ev); err != nil {
				log.Printf("publish error: %v", err)
			}

		case <-d.wake:
			if d.st.TakeCheckDue() {
				mv, err := d.supervisor.Check()
				if err != nil {
					log.Printf("voltage check: %v", err)
				} else {
					d.tracker.SetVoltage(mv)
				}
			}

			if !d.st.PowerGood() {
				// The line must never stay asserted across a
				// lockout transition.
				if err := d.actuator.ForceIdle(); err != nil {
					log.Printf("force idle: %v", err)
				}
			}

			d.tracker.Update(d.st.Power(), d.st.TickCount(), d.st.InhibitRemaining(), d.st.DebounceRemaining())
			if d.mqttStatus != nil {
				d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
			}

			if d.heartbeat > 0 {
				t := d.now()
				if t.Sub(lastHeartbeat) >= d.heartbeat {
					lastHeartbeat = t
					snap := d.tracker.Snapshot()
					hbEvent := mqtt.SystemEvent{
						Timestamp:  t,
						Event:      "HEARTBEAT",
						RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
					}
					if err := d.publisher.PublishSystem(hbEvent); err != nil {
						log.Printf("heartbeat publish error: %v", err)
					} else {
						log.Printf("heartbeat: uptime=%v power=%s supply=%dmV",
							snap.Uptime().Truncate(time.Second), snap.Power, snap.LastMillivolts)
					}
				}
			}
		}
	}
}

func voltageSuffix(ev logic.Event) string {
	if ev.Millivolts == 0 {
		return ""
	}
	return fmt.Sprintf(" (%d mV)", ev.Millivolts)
}
