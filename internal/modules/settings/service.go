package settings

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
)

// Service provides settings business logic
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new settings service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "settings").Logger(),
	}
}

// GetAll retrieves all settings with defaults applied for missing keys
func (s *Service) GetAll() (map[string]interface{}, error) {
	dbValues, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}

	result := make(map[string]interface{})
	for key, defaultValue := range SettingDefaults {
		if dbValue, exists := dbValues[key]; exists {
			if StringSettings[key] {
				result[key] = dbValue
			} else {
				if floatVal, err := strconv.ParseFloat(dbValue, 64); err == nil {
					result[key] = floatVal
				} else {
					result[key] = defaultValue
				}
			}
		} else {
			result[key] = defaultValue
		}
	}

	return result, nil
}

// Get retrieves a setting value with fallback to default
func (s *Service) Get(key string) (interface{}, error) {
	dbValue, err := s.repo.Get(key)
	if err != nil {
		return nil, err
	}

	if dbValue != nil {
		if StringSettings[key] {
			return *dbValue, nil
		}
		if floatVal, err := strconv.ParseFloat(*dbValue, 64); err == nil {
			return floatVal, nil
		}
	}

	defaultValue, exists := SettingDefaults[key]
	if !exists {
		return nil, fmt.Errorf("unknown setting: %s", key)
	}
	return defaultValue, nil
}

// Set updates a setting value with validation
func (s *Service) Set(key string, value interface{}) error {
	if _, exists := SettingDefaults[key]; !exists {
		return fmt.Errorf("unknown setting: %s", key)
	}

	if err := s.validate(key, value); err != nil {
		return err
	}

	var strValue string
	switch v := value.(type) {
	case string:
		strValue = v
	case float64:
		strValue = fmt.Sprintf("%f", v)
	case int:
		strValue = fmt.Sprintf("%d", v)
	case bool:
		strValue = "false"
		if v {
			strValue = "true"
		}
	default:
		return fmt.Errorf("unsupported value type for setting %s", key)
	}

	return s.repo.Set(key, strValue)
}

// validate enforces per-key constraints before a value is stored
func (s *Service) validate(key string, value interface{}) error {
	switch key {
	case "wash_sale_window_days":
		floatVal, ok := value.(float64)
		if !ok {
			return fmt.Errorf("%s must be a number", key)
		}
		if floatVal < 0 || floatVal > 365 {
			return fmt.Errorf("%s must be between 0 and 365", key)
		}

	case "max_overinvestment_pct", "drift_alert_threshold_pct":
		floatVal, ok := value.(float64)
		if !ok {
			return fmt.Errorf("%s must be a number", key)
		}
		if floatVal < 0 || floatVal > 100 {
			return fmt.Errorf("%s must be between 0 and 100", key)
		}

	case "job_washsale_sweep_hour", "job_snapshot_hour", "job_maintenance_hour":
		floatVal, ok := value.(float64)
		if !ok {
			return fmt.Errorf("%s must be a number", key)
		}
		if floatVal < 0 || floatVal > 23 {
			return fmt.Errorf("%s must be an hour between 0 and 23", key)
		}

	case "r2_backup_schedule":
		strVal, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", key)
		}
		if strVal != "daily" && strVal != "weekly" && strVal != "monthly" {
			return fmt.Errorf("%s must be 'daily', 'weekly', or 'monthly'", key)
		}
	}

	return nil
}

// WashSaleWindowDays returns the configured wash-sale restriction window
func (s *Service) WashSaleWindowDays() int {
	days, err := s.repo.GetInt("wash_sale_window_days", 30)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read wash_sale_window_days, using default")
		return 30
	}
	return days
}

// MaxOverinvestmentPct returns the overinvestment headroom percentage
func (s *Service) MaxOverinvestmentPct() float64 {
	pct, err := s.repo.GetFloat("max_overinvestment_pct", 5.0)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read max_overinvestment_pct, using default")
		return 5.0
	}
	return pct
}

// DriftAlertThresholdPct returns the sleeve drift threshold in percentage points
func (s *Service) DriftAlertThresholdPct() float64 {
	pct, err := s.repo.GetFloat("drift_alert_threshold_pct", 5.0)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read drift_alert_threshold_pct, using default")
		return 5.0
	}
	return pct
}
