package link

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSysfsRoot is where the kernel exposes network interfaces.
const DefaultSysfsRoot = "/sys/class/net"

// OperState returns the kernel's operational state of iface, e.g. "up",
// "down" or "dormant" (associating).
func OperState(root, iface string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, iface, "operstate"))
	if err != nil {
		return "", fmt.Errorf("reading operstate of %s: %w", iface, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// OperStateCheck returns a health check that fails unless iface is up.
func OperStateCheck(root, iface string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		state, err := OperState(root, iface)
		if err != nil {
			return err
		}
		if state != "up" {
			return fmt.Errorf("%w: %s is %s", ErrLinkDown, iface, state)
		}
		return nil
	}
}
