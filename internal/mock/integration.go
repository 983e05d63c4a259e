package mock

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Sensor runs a SensorServer on a TCP address as a supervised service.
type Sensor struct {
	addr   string
	server *SensorServer
}

// NewSensor creates a mock sensor listening on addr with n simulated stations.
func NewSensor(addr string, stations int, interval time.Duration) *Sensor {
	gen := NewDataGenerator(time.Now().UnixNano())
	gen.GenerateStations(stations)
	return &Sensor{
		addr:   addr,
		server: NewSensorServer(gen, WithInterval(interval)),
	}
}

// BaseURL is the http URL the sensor adapters should point at.
func (m *Sensor) BaseURL() string {
	return "http://" + m.addr
}

// Serve listens until ctx is cancelled. It satisfies suture.Service.
func (m *Sensor) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: m.server.Handler(), ReadHeaderTimeout: 5 * time.Second}

	emitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go m.server.Emit(emitCtx)

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("mock sensor listening", "addr", m.addr)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (m *Sensor) String() string {
	return "mock-sensor"
}
