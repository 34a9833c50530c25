package location

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

const knotsToMS = 0.514444 // 1 kn in m/s

// NMEABackend reads NMEA 0183 sentences from a UART GPS receiver.
// Compatible with u-blox NEO-M8N and any standard NMEA talker.
//
// Permission maps onto device access: undetermined until the port is opened,
// while-in-use once the open succeeds, denied on a permission-style failure
// and restricted when the device node is absent.
type NMEABackend struct {
	portPath string
	baudRate int
	log      *zap.Logger

	mu      sync.Mutex
	port    serial.Port
	perm    Permission
	stop    chan struct{}
	lastAlt float64 // most recent GGA altitude, folded into RMC updates
}

// NMEAConfig holds configuration for the NMEA backend.
type NMEAConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

// NewNMEABackend creates an NMEA backend. The port is not opened until
// permission is requested or updates start.
func NewNMEABackend(cfg NMEAConfig, log *zap.Logger) *NMEABackend {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600 // Standard NMEA default
	}
	return &NMEABackend{
		portPath: cfg.PortPath,
		baudRate: cfg.BaudRate,
		log:      log.Named("nmea"),
	}
}

func (n *NMEABackend) Name() string { return "NMEA GPS" }

func (n *NMEABackend) Permission() Permission {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.perm
}

// RequestPermission attempts to open the receiver's port once. Device access
// is the hardware analog of a location permission grant.
func (n *NMEABackend) RequestPermission(cb func(Permission)) {
	n.mu.Lock()
	p := n.perm
	n.mu.Unlock()
	if p == PermissionUndetermined {
		p = n.open()
	}
	if cb != nil {
		cb(p)
	}
}

// open opens the serial port, records the resulting permission state and
// keeps the port for the update stream.
func (n *NMEABackend) open() Permission {
	mode := &serial.Mode{
		BaudRate: n.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(n.portPath, mode)
	p := PermissionWhileInUse
	if err != nil {
		n.log.Warn("open failed", zap.String("port", n.portPath), zap.Error(err))
		p = openFailurePermission(err)
	} else {
		port.SetReadTimeout(200 * time.Millisecond)
		n.log.Info("connected", zap.String("port", n.portPath), zap.Int("baud", n.baudRate))
	}
	n.mu.Lock()
	n.perm = p
	if err == nil {
		n.port = port
	}
	n.mu.Unlock()
	return p
}

func openFailurePermission(err error) Permission {
	var pe *serial.PortError
	if errors.As(err, &pe) && pe.Code() == serial.PortNotFound {
		return PermissionRestricted
	}
	return PermissionDenied
}

// StartUpdates launches the sentence reader. Calling it while already
// streaming has no effect.
func (n *NMEABackend) StartUpdates(h Handlers) error {
	n.mu.Lock()
	if n.stop != nil {
		n.mu.Unlock()
		return nil
	}
	port := n.port
	n.mu.Unlock()

	if port == nil {
		if p := n.open(); !p.Authorized() {
			return fmt.Errorf("nmea: port %s unavailable", n.portPath)
		}
		n.mu.Lock()
		port = n.port
		n.mu.Unlock()
	}

	stop := make(chan struct{})
	n.mu.Lock()
	n.stop = stop
	n.mu.Unlock()
	go n.readLoop(port, h, stop)
	return nil
}

// StopUpdates halts the reader and releases the port. Permission state is
// retained so a later StartUpdates reopens without a new grant.
func (n *NMEABackend) StopUpdates() {
	n.mu.Lock()
	stop := n.stop
	n.stop = nil
	port := n.port
	n.port = nil
	n.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	if port != nil {
		port.Close()
	}
}

func (n *NMEABackend) readLoop(port serial.Port, h Handlers, stop chan struct{}) {
	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		select {
		case <-stop:
			return
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}
		sentence, err := nmea.Parse(line)
		if err != nil {
			// Noisy receivers emit partial sentences; drop them silently.
			continue
		}
		n.apply(sentence, h)
	}
}

// apply routes one parsed sentence into the handler callbacks. RMC drives
// position, speed and course; GGA contributes altitude; HDT contributes
// heading for receivers that emit it.
func (n *NMEABackend) apply(s nmea.Sentence, h Handlers) {
	switch s.DataType() {
	case nmea.TypeRMC:
		m := s.(nmea.RMC)
		if m.Validity != "A" {
			return
		}
		n.mu.Lock()
		alt := n.lastAlt
		n.mu.Unlock()
		if h.Locations != nil {
			h.Locations([]Update{{
				Latitude:       m.Latitude,
				Longitude:      m.Longitude,
				AltitudeMeters: alt,
				SpeedMS:        m.Speed * knotsToMS,
			}})
		}
		if h.Heading != nil {
			h.Heading(m.Course)
		}
	case nmea.TypeGGA:
		m := s.(nmea.GGA)
		n.mu.Lock()
		n.lastAlt = m.Altitude
		n.mu.Unlock()
	case nmea.TypeHDT:
		m := s.(nmea.HDT)
		if h.Heading != nil {
			h.Heading(m.Heading)
		}
	}
}
