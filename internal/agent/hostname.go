package agent

import (
	"fmt"
	"os"
	"strings"

	"github.com/signalnine/autoback/internal/protocol"
)

// hostnameFunc is os.Hostname, replaceable in tests
var hostnameFunc = os.Hostname

// ResolveHostname returns the host identity used in both renderings.
// A configured name wins; otherwise the OS host name is used.
func ResolveHostname(configured string) (string, error) {
	name := strings.TrimSpace(configured)
	if name == "" {
		h, err := hostnameFunc()
		if err != nil {
			return "", fmt.Errorf("get hostname: %w", err)
		}
		name = strings.TrimSpace(h)
	}

	if err := protocol.ValidateHostname(name); err != nil {
		return "", err
	}
	return name, nil
}
