package agent

import (
	"github.com/guildworks/guildhall/pkg/config"
)

// Dispatch failures reuse the catalog's sentinels so one errors.Is check
// works across both packages.
var (
	ErrAgentNotFound = config.ErrAgentNotFound
	ErrInvalidConfig = config.ErrInvalidConfig
)
