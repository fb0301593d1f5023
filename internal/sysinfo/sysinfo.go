// Package sysinfo reports host and process health for the admin system page.
package sysinfo

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is one reading.
type Snapshot struct {
	Host    HostInfo    `json:"host"`
	CPU     CPUInfo     `json:"cpu"`
	Memory  MemoryInfo  `json:"memory"`
	Process ProcessInfo `json:"process"`
}

type HostInfo struct {
	Hostname      string `json:"hostname"`
	OS            string `json:"os"`
	Platform      string `json:"platform"`
	UptimeSeconds uint64 `json:"uptimeSeconds"`
}

type CPUInfo struct {
	Cores        int     `json:"cores"`
	UsagePercent float64 `json:"usagePercent"`
}

type MemoryInfo struct {
	TotalBytes  uint64  `json:"totalBytes"`
	UsedBytes   uint64  `json:"usedBytes"`
	UsedPercent float64 `json:"usedPercent"`
}

type ProcessInfo struct {
	GoVersion     string  `json:"goVersion"`
	Goroutines    int     `json:"goroutines"`
	HeapBytes     uint64  `json:"heapBytes"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	OnlineUsers   int     `json:"onlineUsers"`
}

// Collector takes snapshots. online reports the number of connected users.
type Collector struct {
	online   func() int
	started  time.Time
	interval time.Duration
}

func NewCollector(online func() int) *Collector {
	return &Collector{online: online, started: time.Now(), interval: 200 * time.Millisecond}
}

// Collect samples CPU usage over a short interval, so it blocks briefly.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("sysinfo: host info: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("sysinfo: memory: %w", err)
	}
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("sysinfo: cpu count: %w", err)
	}
	usage, err := cpu.PercentWithContext(ctx, c.interval, false)
	if err != nil {
		return nil, fmt.Errorf("sysinfo: cpu usage: %w", err)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	snap := &Snapshot{
		Host: HostInfo{
			Hostname:      hi.Hostname,
			OS:            hi.OS,
			Platform:      hi.Platform,
			UptimeSeconds: hi.Uptime,
		},
		CPU: CPUInfo{Cores: cores},
		Memory: MemoryInfo{
			TotalBytes:  vm.Total,
			UsedBytes:   vm.Used,
			UsedPercent: vm.UsedPercent,
		},
		Process: ProcessInfo{
			GoVersion:     runtime.Version(),
			Goroutines:    runtime.NumGoroutine(),
			HeapBytes:     ms.HeapAlloc,
			UptimeSeconds: time.Since(c.started).Seconds(),
		},
	}
	if len(usage) > 0 {
		snap.CPU.UsagePercent = usage[0]
	}
	if c.online != nil {
		snap.Process.OnlineUsers = c.online()
	}
	return snap, nil
}
