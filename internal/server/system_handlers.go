// Package server provides the HTTP server and routing for Ballast.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ballastd/ballast/internal/database"
	"github.com/ballastd/ballast/internal/modules/accounts"
	"github.com/ballastd/ballast/internal/modules/universe"
	"github.com/ballastd/ballast/internal/version"
	"github.com/rs/zerolog"
)

// healthProbeTimeout bounds the per-request database pings.
const healthProbeTimeout = 2 * time.Second

// SystemHandlers serves the monitoring endpoints: overall status,
// database statistics, and disk usage.
type SystemHandlers struct {
	log          zerolog.Logger
	dataDir      string
	startupTime  time.Time
	databases    map[string]*database.DB
	historyConn  *sql.DB
	securityRepo *universe.SecurityRepository
	groupRepo    *accounts.Repository
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	databases map[string]*database.DB,
	historyConn *sql.DB,
	securityRepo *universe.SecurityRepository,
	groupRepo *accounts.Repository,
) *SystemHandlers {
	return &SystemHandlers{
		log:          log.With().Str("component", "system_handlers").Logger(),
		dataDir:      dataDir,
		startupTime:  time.Now(),
		databases:    databases,
		historyConn:  historyConn,
		securityRepo: securityRepo,
		groupRepo:    groupRepo,
	}
}

// SystemStatusResponse is the payload for GET /api/system/status
type SystemStatusResponse struct {
	Status            string            `json:"status"`
	Version           string            `json:"version"`
	UptimeSeconds     int64             `json:"uptime_seconds"`
	HostUptimeSeconds uint64            `json:"host_uptime_seconds"`
	CPUPercent        float64           `json:"cpu_percent"`
	MemoryPercent     float64           `json:"memory_percent"`
	SecurityCount     int               `json:"security_count"`
	GroupCount        int               `json:"group_count"`
	Databases         map[string]string `json:"databases"`
	Timestamp         string            `json:"timestamp"`
}

// DBInfo describes one database file in the stats response
type DBInfo struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	PageCount int64   `json:"page_count"`
	FreePages int64   `json:"free_pages"`
}

// DatabaseStatsResponse is the payload for GET /api/system/database/stats
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// DiskUsageResponse is the payload for GET /api/system/disk
type DiskUsageResponse struct {
	DataDirMB       float64 `json:"data_dir_mb"`
	BackupsMB       float64 `json:"backups_mb"`
	DiskTotalGB     float64 `json:"disk_total_gb"`
	DiskFreeGB      float64 `json:"disk_free_gb"`
	DiskUsedPercent float64 `json:"disk_used_percent"`
}

// HandleSystemStatus returns overall system status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPct, memPct := h.getSystemStats()

	securityCount := 0
	if h.securityRepo != nil {
		if secs, err := h.securityRepo.GetAll(); err == nil {
			securityCount = len(secs)
		} else {
			h.log.Warn().Err(err).Msg("Failed to count securities")
		}
	}

	groupCount := 0
	if h.groupRepo != nil {
		if groups, err := h.groupRepo.ListGroups(); err == nil {
			groupCount = len(groups)
		} else {
			h.log.Warn().Err(err).Msg("Failed to count groups")
		}
	}

	status := "healthy"
	dbStatus := h.probeDatabases()
	for _, state := range dbStatus {
		if state != "ok" {
			status = "degraded"
			break
		}
	}

	hostUptime, err := host.Uptime()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get host uptime")
	}

	response := SystemStatusResponse{
		Status:            status,
		Version:           version.Version,
		UptimeSeconds:     int64(time.Since(h.startupTime).Seconds()),
		HostUptimeSeconds: hostUptime,
		CPUPercent:        cpuPct,
		MemoryPercent:     memPct,
		SecurityCount:     securityCount,
		GroupCount:        groupCount,
		Databases:         dbStatus,
		Timestamp:         time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleDatabaseStats returns per-database statistics
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	infos := make([]DBInfo, 0, len(h.databases)+1)
	totalSizeMB := 0.0

	for name, db := range h.databases {
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to get database stats")
			continue
		}

		sizeMB := float64(stats.SizeBytes) / 1024 / 1024
		totalSizeMB += sizeMB

		infos = append(infos, DBInfo{
			Name:      name,
			Path:      db.Path(),
			SizeMB:    sizeMB,
			WALSizeMB: float64(stats.WALSizeBytes) / 1024 / 1024,
			PageCount: stats.PageCount,
			FreePages: stats.FreelistCount,
		})
	}

	// history.db is opened outside the managed pool
	historyPath := filepath.Join(h.dataDir, "history.db")
	if info, err := os.Stat(historyPath); err == nil {
		sizeMB := float64(info.Size()) / 1024 / 1024
		totalSizeMB += sizeMB

		historyInfo := DBInfo{
			Name:   "history",
			Path:   historyPath,
			SizeMB: sizeMB,
		}
		if walInfo, err := os.Stat(historyPath + "-wal"); err == nil {
			historyInfo.WALSizeMB = float64(walInfo.Size()) / 1024 / 1024
		}
		infos = append(infos, historyInfo)
	}

	sortDBInfos(infos)

	response := DatabaseStatsResponse{
		Databases:   infos,
		TotalSizeMB: totalSizeMB,
		LastChecked: time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleDiskUsage returns disk usage statistics
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting disk usage")

	response := DiskUsageResponse{
		DataDirMB: h.getDirSize(h.dataDir),
		BackupsMB: h.getDirSize(filepath.Join(h.dataDir, "backups")),
	}

	if usage, err := disk.Usage(h.dataDir); err == nil {
		response.DiskTotalGB = float64(usage.Total) / 1024 / 1024 / 1024
		response.DiskFreeGB = float64(usage.Free) / 1024 / 1024 / 1024
		response.DiskUsedPercent = usage.UsedPercent
	} else {
		h.log.Warn().Err(err).Msg("Failed to get filesystem usage")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// DatabasesHealthy reports whether every database answers a ping.
func (h *SystemHandlers) DatabasesHealthy() bool {
	for _, state := range h.probeDatabases() {
		if state != "ok" {
			return false
		}
	}
	return true
}

// probeDatabases pings each database. Integrity checks are left to the
// weekly maintenance job; this path must stay cheap.
func (h *SystemHandlers) probeDatabases() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), healthProbeTimeout)
	defer cancel()

	states := make(map[string]string, len(h.databases)+1)
	for name, db := range h.databases {
		if err := db.QuickCheck(ctx); err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Database ping failed")
			states[name] = "error"
		} else {
			states[name] = "ok"
		}
	}

	if h.historyConn != nil {
		if err := h.historyConn.PingContext(ctx); err != nil {
			h.log.Warn().Err(err).Str("database", "history").Msg("Database ping failed")
			states["history"] = "error"
		} else {
			states["history"] = "ok"
		}
	}

	return states
}

// getDirSize calculates total size of a directory in MB. Missing
// directories count as zero.
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats returns CPU and RAM usage percentages. The CPU sample
// window is 100ms so the status endpoint stays responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// sortDBInfos orders database stats by name so responses are stable.
func sortDBInfos(infos []DBInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
}
