package settings

// SettingDefaults holds all default values for configurable settings
var SettingDefaults = map[string]interface{}{
	// Wash-sale tracking
	"wash_sale_window_days": 30.0, // Days a ticker stays restricted after a realized loss

	// Rebalancing engine
	"max_overinvestment_pct":    5.0, // Max percent above available cash when overinvestment is allowed
	"drift_alert_threshold_pct": 5.0, // Sleeve drift (percentage points) that flags a group for rebalancing

	// Price data
	"price_stale_hours": 48.0, // Maximum age of price data before considered stale (hours)

	// Retention
	"snapshot_retention_days": 365.0, // Days to keep daily group snapshots
	"proposal_retention_days": 90.0,  // Days to keep generated trade proposals

	// Job scheduling
	"job_washsale_sweep_hour": 1.0,  // Nightly wash-sale sweep hour (0-23)
	"job_snapshot_hour":       22.0, // Daily snapshot hour (0-23)
	"job_maintenance_hour":    3.0,  // Daily database maintenance hour (0-23)

	// Cloudflare R2 backup settings
	"r2_account_id":            "",      // Cloudflare R2 account ID
	"r2_access_key_id":         "",      // R2 access key ID
	"r2_secret_access_key":     "",      // R2 secret access key
	"r2_bucket_name":           "",      // R2 bucket name
	"r2_backup_enabled":        0.0,     // 1.0 = enabled, 0.0 = disabled
	"r2_backup_schedule":       "daily", // Backup schedule: "daily", "weekly", or "monthly"
	"r2_backup_retention_days": 90.0,    // Days to keep backups (0 = keep forever)
}

// StringSettings defines which settings should be treated as strings rather than floats
var StringSettings = map[string]bool{
	"r2_account_id":        true,
	"r2_access_key_id":     true,
	"r2_secret_access_key": true,
	"r2_bucket_name":       true,
	"r2_backup_schedule":   true,
}

// SettingDescriptions holds human-readable descriptions for settings
var SettingDescriptions = map[string]string{
	"wash_sale_window_days":     "Days a security stays restricted after a sale at a loss (IRS wash-sale rule uses 30)",
	"max_overinvestment_pct":    "Maximum percent above available cash a rebalance may invest when overinvestment is allowed",
	"drift_alert_threshold_pct": "Sleeve drift in percentage points at which a group is flagged as needing rebalancing",
	"price_stale_hours":         "Maximum age of price data before it is considered stale",
	"snapshot_retention_days":   "Days to keep daily per-group valuation snapshots",
	"proposal_retention_days":   "Days to keep generated trade proposals",
	"r2_backup_schedule":        "Backup cadence: daily, weekly, or monthly",
}

// SettingUpdate represents a setting value update request
type SettingUpdate struct {
	Value interface{} `json:"value"`
}
