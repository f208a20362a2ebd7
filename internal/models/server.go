package models

import "time"

// ServerInfoResponse is the body of the side server's info endpoint
type ServerInfoResponse struct {
	StartTime      time.Time   `json:"start_time"`
	Uptime         float64     `json:"uptime"` // seconds
	ActiveSessions int         `json:"active_sessions"`
	KnownUsers     int         `json:"known_users"`
	System         SystemStats `json:"system"`
}

// SystemStats describes the bot process and the disk holding its database
type SystemStats struct {
	CPUCount   int         `json:"cpu_count"`
	CPUPercent float64     `json:"cpu_percent"`
	Memory     MemoryStats `json:"memory"`
	Disk       DiskStats   `json:"disk"`
	IO         IOStats     `json:"io"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	RSS     uint64  `json:"rss"`     // Resident Set Size in bytes
	VMS     uint64  `json:"vms"`     // Virtual Memory Size in bytes
	Percent float32 `json:"percent"` // Memory usage percentage
}

// DiskStats represents disk usage statistics
type DiskStats struct {
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Percent float64 `json:"percent"`
}

// IOStats represents I/O statistics
type IOStats struct {
	ReadBytes  uint64 `json:"read_bytes"`
	WriteBytes uint64 `json:"write_bytes"`
}
