package dashboard

import (
	"time"

	"github.com/truecharts/truenas-go/pkg/rest"
)

// Dashboard is the system overview combining system.info with the latest realtime sample.
type Dashboard struct {
	Hostname      string
	Version       string
	Model         string
	Uptime        time.Duration
	Cores         int
	PhysicalCores int
	LoadAverage   []float64

	CPUUsage float64
	// CPUTemperature is the hottest core, zero when the server reports no sensors.
	CPUTemperature float64
	Memory         Memory
	Interfaces     []Interface
	ARCSize        int64
	ARCPercent     float64
}

// Build merges info and rt. Either may be nil.
func Build(info *rest.SystemInfo, rt *Realtime) Dashboard {
	var dashboard Dashboard

	if info != nil {
		dashboard.Hostname = info.Hostname
		dashboard.Version = info.Version
		dashboard.Model = info.Model
		dashboard.Uptime = time.Duration(info.UptimeSeconds * float64(time.Second))
		dashboard.Cores = info.Cores
		dashboard.PhysicalCores = info.PhysicalCores
		dashboard.LoadAverage = info.LoadAvg
	}

	if rt == nil {
		if info != nil {
			dashboard.Memory.Total = info.PhysMem
		}
		return dashboard
	}

	dashboard.CPUUsage = rt.CPUUsage
	for _, temperature := range rt.CPUTemperatures {
		if temperature > dashboard.CPUTemperature {
			dashboard.CPUTemperature = temperature
		}
	}
	dashboard.Memory = rt.Memory
	if dashboard.Memory.Total == 0 && info != nil {
		dashboard.Memory.Total = info.PhysMem
	}
	dashboard.Interfaces = rt.Interfaces
	dashboard.ARCSize = rt.ARCSize
	if dashboard.Memory.Total > 0 {
		dashboard.ARCPercent = float64(rt.ARCSize) / float64(dashboard.Memory.Total) * 100
	}

	return dashboard
}
