package server

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/denysvitali/nextcloud-files-bot/internal/models"
)

// systemStats samples the bot process and the disk under dataDir. Failed
// probes are logged and reported as zero.
func (s *Server) systemStats(dataDir string) models.SystemStats {
	stats := models.SystemStats{CPUCount: runtime.NumCPU()}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.logger.Warnf("Failed to get process info: %v", err)
		return stats
	}

	if cpuPercent, err := proc.CPUPercent(); err != nil {
		s.logger.Warnf("Failed to get CPU percent: %v", err)
	} else {
		stats.CPUPercent = cpuPercent
	}

	if memInfo, err := proc.MemoryInfo(); err != nil {
		s.logger.Warnf("Failed to get memory info: %v", err)
	} else {
		stats.Memory.RSS = memInfo.RSS
		stats.Memory.VMS = memInfo.VMS
	}

	if memPercent, err := proc.MemoryPercent(); err != nil {
		s.logger.Warnf("Failed to get memory percent: %v", err)
	} else {
		stats.Memory.Percent = memPercent
	}

	if dataDir == "" {
		dataDir = "/"
	}
	if usage, err := disk.Usage(dataDir); err != nil {
		s.logger.Warnf("Failed to get disk usage: %v", err)
	} else {
		stats.Disk = models.DiskStats{
			Total:   usage.Total,
			Used:    usage.Used,
			Free:    usage.Free,
			Percent: usage.UsedPercent,
		}
	}

	// not available on every platform
	if io, err := proc.IOCounters(); err != nil {
		s.logger.Debugf("Failed to get IO counters: %v", err)
	} else {
		stats.IO = models.IOStats{ReadBytes: io.ReadBytes, WriteBytes: io.WriteBytes}
	}

	return stats
}
