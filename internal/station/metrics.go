package station

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics 站点指标
type Metrics struct {
	BellsFired          prometheus.Counter
	AnnouncementsPlayed prometheus.Counter
	StopsApplied        prometheus.Counter
	TicksSkipped        prometheus.Counter
	PlaybackErrors      *prometheus.CounterVec
	Snapshots           *prometheus.CounterVec
	DirectoryChanges    *prometheus.CounterVec
	Connected           prometheus.Gauge
	StateRev            prometheus.Gauge
}

// NewMetrics 创建并注册站点指标
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BellsFired: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "zil_station_bells_fired_total", Help: "Scheduled bells fired"},
		),
		AnnouncementsPlayed: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "zil_station_announcements_played_total", Help: "Announcements played"},
		),
		StopsApplied: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "zil_station_stops_applied_total", Help: "Stop signals applied"},
		),
		TicksSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "zil_station_ticks_skipped_total", Help: "Schedule ticks skipped while state was stale"},
		),
		PlaybackErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "zil_station_playback_errors_total", Help: "Playback failures"},
			[]string{"source"},
		),
		Snapshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "zil_station_state_snapshots_total", Help: "Full state snapshots received"},
			[]string{"reason"},
		),
		DirectoryChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "zil_station_directory_changes_total", Help: "Directory changes applied"},
			[]string{"collection"},
		),
		Connected: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "zil_station_state_connected", Help: "1 while the state subscription is live"},
		),
		StateRev: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "zil_station_state_rev", Help: "Revision of the local state view"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.BellsFired,
			m.AnnouncementsPlayed,
			m.StopsApplied,
			m.TicksSkipped,
			m.PlaybackErrors,
			m.Snapshots,
			m.DirectoryChanges,
			m.Connected,
			m.StateRev,
		)
	}
	return m
}

// ServeMetrics 在 addr 上暴露 /metrics，直到 ctx 取消
func ServeMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics exposed", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
