package tickship

import (
	"github.com/bft-labs/tickship/pkg/frame"
	"github.com/bft-labs/tickship/pkg/log"
)

// Version information for the tickship facade.
const (
	// Version is the current version of the tickship module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.0.0"
)

// ModuleVersions returns the version of every sub-module the facade depends on.
func ModuleVersions() map[string]string {
	return map[string]string{
		"tickship": Version,
		"frame":    frame.Version,
		"log":      log.Version,
	}
}
