package location

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const gpsdDefaultAddr = "127.0.0.1:2947"

// GPSDBackend streams fixes from a local gpsd daemon over its JSON protocol.
// Reaching the daemon counts as the permission grant; a refused connection
// is a denial.
type GPSDBackend struct {
	addr string
	log  *zap.Logger

	mu   sync.Mutex
	conn net.Conn
	perm Permission
	stop chan struct{}
}

// GPSDConfig holds configuration for the gpsd backend.
type GPSDConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// NewGPSDBackend creates a gpsd backend. The daemon is not contacted until
// permission is requested or updates start.
func NewGPSDBackend(cfg GPSDConfig, log *zap.Logger) *GPSDBackend {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = gpsdDefaultAddr
	}
	return &GPSDBackend{addr: addr, log: log.Named("gpsd")}
}

func (g *GPSDBackend) Name() string { return "gpsd" }

func (g *GPSDBackend) Permission() Permission {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.perm
}

func (g *GPSDBackend) RequestPermission(cb func(Permission)) {
	g.mu.Lock()
	p := g.perm
	g.mu.Unlock()
	if p == PermissionUndetermined {
		p = g.dial()
	}
	if cb != nil {
		cb(p)
	}
}

// dial connects to gpsd and enables JSON streaming reports.
func (g *GPSDBackend) dial() Permission {
	d := &net.Dialer{Timeout: 2 * time.Second}
	conn, err := d.Dial("tcp", g.addr)
	if err != nil {
		g.log.Warn("dial failed", zap.String("addr", g.addr), zap.Error(err))
		g.setPerm(PermissionDenied)
		return PermissionDenied
	}
	// scaled=true yields SI units (m/s, meters) and degrees.
	if _, err := conn.Write([]byte(`?WATCH={"enable":true,"json":true,"scaled":true}` + "\n")); err != nil {
		conn.Close()
		g.log.Warn("watch failed", zap.String("addr", g.addr), zap.Error(err))
		g.setPerm(PermissionDenied)
		return PermissionDenied
	}
	g.mu.Lock()
	g.conn = conn
	g.perm = PermissionWhileInUse
	g.mu.Unlock()
	g.log.Info("connected", zap.String("addr", g.addr))
	return PermissionWhileInUse
}

func (g *GPSDBackend) setPerm(p Permission) {
	g.mu.Lock()
	g.perm = p
	g.mu.Unlock()
}

// StartUpdates launches the report reader. Calling it while already
// streaming has no effect.
func (g *GPSDBackend) StartUpdates(h Handlers) error {
	g.mu.Lock()
	if g.stop != nil {
		g.mu.Unlock()
		return nil
	}
	conn := g.conn
	g.mu.Unlock()

	if conn == nil {
		if p := g.dial(); !p.Authorized() {
			return fmt.Errorf("gpsd: %s unreachable", g.addr)
		}
		g.mu.Lock()
		conn = g.conn
		g.mu.Unlock()
	}

	stop := make(chan struct{})
	g.mu.Lock()
	g.stop = stop
	g.mu.Unlock()
	go g.readLoop(conn, h, stop)
	return nil
}

// StopUpdates halts the reader and drops the connection. Permission state is
// retained so a later StartUpdates redials without a new grant.
func (g *GPSDBackend) StopUpdates() {
	g.mu.Lock()
	stop := g.stop
	g.stop = nil
	conn := g.conn
	g.conn = nil
	g.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	if conn != nil {
		conn.Close()
	}
}

func (g *GPSDBackend) readLoop(conn net.Conn, h Handlers, stop chan struct{}) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		select {
		case <-stop:
			return
		default:
		}
		applyGPSDLine(scanner.Bytes(), h)
	}
}

// gpsdTPV is the subset of a gpsd time-position-velocity report this backend
// consumes. Fields are pointers because gpsd omits what it does not know.
type gpsdTPV struct {
	Class   string   `json:"class"`
	Mode    *int     `json:"mode"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	Alt     *float64 `json:"alt"`
	AltMSL  *float64 `json:"altMSL"`
	SpeedMS *float64 `json:"speed"`
	Track   *float64 `json:"track"`
}

// applyGPSDLine decodes one report line. Only TPV reports matter here;
// VERSION, DEVICES, SKY and friends are ignored, as is anything malformed.
func applyGPSDLine(line []byte, h Handlers) {
	var tpv gpsdTPV
	if err := json.Unmarshal(line, &tpv); err != nil {
		return
	}
	if !strings.EqualFold(strings.TrimSpace(tpv.Class), "TPV") {
		return
	}

	mode := 0
	if tpv.Mode != nil {
		mode = *tpv.Mode
	}
	// A position needs at least a 2D fix and both coordinates.
	if mode >= 2 && tpv.Lat != nil && tpv.Lon != nil && h.Locations != nil {
		u := Update{
			Latitude:  *tpv.Lat,
			Longitude: *tpv.Lon,
			SpeedMS:   -1, // unknown until gpsd reports one
		}
		if tpv.SpeedMS != nil {
			u.SpeedMS = *tpv.SpeedMS
		}
		alt := tpv.AltMSL
		if alt == nil {
			alt = tpv.Alt
		}
		if alt != nil {
			u.AltitudeMeters = *alt
		}
		h.Locations([]Update{u})
	}

	if tpv.Track != nil && h.Heading != nil {
		h.Heading(*tpv.Track)
	}
}
