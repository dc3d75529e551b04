package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "room_service"

var (
	roomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rooms_created_total",
		Help:      "Rooms successfully created.",
	})

	idCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "room_id_collisions_total",
		Help:      "Room id collisions hit while inserting a new room.",
	})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Room lifecycle events handed to the bus, by event type and result.",
	}, []string{"event_type", "result"})

	sweepCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeper_cycles_total",
		Help:      "Sweeper cycles run, by result.",
	}, []string{"result"})

	roomsReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeper_rooms_reclaimed_total",
		Help:      "Expired rooms found and deleted by the sweeper.",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// RoomCreated counts a created room.
func RoomCreated() { roomsCreated.Inc() }

// IDCollision counts a room id collision.
func IDCollision() { idCollisions.Inc() }

// ObservePublish counts a publish attempt and its outcome.
func ObservePublish(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	eventsPublished.WithLabelValues(eventType, result).Inc()
}

// SweepCycle counts a sweeper cycle and the rooms it reclaimed.
func SweepCycle(reclaimed int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	sweepCycles.WithLabelValues(result).Inc()
	if reclaimed > 0 {
		roomsReclaimed.Add(float64(reclaimed))
	}
}

// GinMiddleware records request latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Register mounts /metrics on a gin router.
func Register(r gin.IRouter) {
	r.GET("/metrics", gin.WrapH(Handler()))
}
