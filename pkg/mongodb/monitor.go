package mongodb

import (
	"sync/atomic"

	"go.mongodb.org/mongo-driver/event"

	"github.com/wms-platform/freight-service/pkg/metrics"
)

// NewPoolMonitor returns a driver pool monitor that keeps the open-connection
// gauge current. Assign it to Config.PoolMonitor before NewClient.
func NewPoolMonitor(m *metrics.Metrics) *event.PoolMonitor {
	var open int64
	return &event.PoolMonitor{
		Event: func(e *event.PoolEvent) {
			switch e.Type {
			case event.ConnectionCreated:
				m.SetMongoDBConnections(int(atomic.AddInt64(&open, 1)))
			case event.ConnectionClosed:
				m.SetMongoDBConnections(int(atomic.AddInt64(&open, -1)))
			}
		},
	}
}
