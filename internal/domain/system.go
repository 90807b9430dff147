package domain

import "time"

type RuntimeMetrics struct {
	Goroutines   int           `json:"goroutines"`
	HeapAlloc    uint64        `json:"heap_alloc_bytes"`
	HeapObjects  uint64        `json:"heap_objects"`
	SysBytes     uint64        `json:"sys_bytes"`
	NumGC        uint32        `json:"num_gc"`
	Uptime       time.Duration `json:"uptime_ns"`
	StoreBackend string        `json:"store_backend"`
	StoreBreaker string        `json:"store_breaker,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

type QueueMetrics struct {
	PendingJobs   int64     `json:"pending"`
	ActiveJobs    int64     `json:"active"`
	ScheduledJobs int64     `json:"scheduled"`
	RetryJobs     int64     `json:"retry"`
	ArchivedJobs  int64     `json:"archived"`
	ProcessedLast int64     `json:"processed_today"`
	FailedLast    int64     `json:"failed_today"`
	Queues        []string  `json:"queues"`
	Timestamp     time.Time `json:"timestamp"`
}

type DatabaseMetrics struct {
	ActiveConnections int       `json:"active_connections"`
	IdleConnections   int       `json:"idle_connections"`
	MaxConnections    int       `json:"max_connections"`
	AcquireCount      int64     `json:"acquire_count"`
	Timestamp         time.Time `json:"timestamp"`
}
