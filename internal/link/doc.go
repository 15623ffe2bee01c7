// Package link keeps the node's Wi-Fi association alive.
//
// The node runs wpa_supplicant in the foreground as a supervised child
// process. If the daemon exits it is restarted after a fixed delay, and a
// watchdog reads /sys/class/net/<iface>/operstate: three consecutive
// checks that do not report "up" kill the daemon so it re-associates from
// scratch.
//
// Features:
//   - Start/stop with graceful SIGTERM then SIGKILL on the process group
//   - Fixed-delay restart, optionally capped by attempt count
//   - Operstate watchdog
//   - Daemon stdout/stderr captured at debug level
//   - Stats snapshot for the status API
//
// # Usage
//
//	sup := link.NewSupervisor(link.FromConfig(cfg.Network.Supervisor))
//	sup.SetLogger(logger.Component("link"))
//	err := sup.Run(ctx) // blocks until ctx is done, then stops the daemon
//
// # Thread Safety
//
// All Supervisor methods are safe for concurrent use.
package link
