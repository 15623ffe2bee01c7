package link

import (
	"time"

	"github.com/knightpp/esp-sensor/internal/infrastructure/config"
)

// WPASupplicantArgs returns the arguments that run wpa_supplicant in the
// foreground on iface with the given network configuration.
func WPASupplicantArgs(iface, configFile string) []string {
	return []string{"-i", iface, "-c", configFile}
}

// FromConfig builds a supervisor Config for wpa_supplicant.
func FromConfig(cfg config.SupervisorConfig) Config {
	return Config{
		Name:                "wpa_supplicant",
		Binary:              cfg.Binary,
		Args:                WPASupplicantArgs(cfg.Interface, cfg.ConfigFile),
		RestartDelay:        time.Duration(cfg.RestartDelay) * time.Second,
		MaxRestartAttempts:  cfg.MaxRestartAttempts,
		HealthCheck:         OperStateCheck(DefaultSysfsRoot, cfg.Interface),
		HealthCheckInterval: time.Duration(cfg.HealthCheckInterval) * time.Second,
	}
}
