package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AppointmentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_appointments_created_total",
		Help: "Appointments successfully created.",
	})
	AppointmentsCanceled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_appointments_canceled_total",
		Help: "Appointments successfully canceled.",
	})
	BookingRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_rejections_total",
		Help: "Create requests rejected, by reason.",
	}, []string{"reason"})
	JobEnqueueFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_job_enqueue_failures_total",
		Help: "Jobs that could not be handed to the queue.",
	}, []string{"kind"})
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_jobs_processed_total",
		Help: "Jobs handled by the worker, by kind and result.",
	}, []string{"kind", "result"})
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_http_requests_total",
		Help: "HTTP requests by method and status code.",
	}, []string{"method", "status"})
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "booking_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)
