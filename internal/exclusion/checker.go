// Package exclusion keeps mail from configured sender domains away from the
// AI classification path.
package exclusion

import (
	"strings"

	"go.uber.org/zap"
)

// Checker matches sender addresses against excluded domains. A domain also
// covers its subdomains.
type Checker struct {
	domains map[string]struct{}
	logger  *zap.Logger
}

// NewChecker creates a new exclusion checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}

	normalized := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
		if domain != "" {
			normalized[domain] = struct{}{}
		}
	}

	if len(normalized) > 0 {
		logger.Info("Initialized AI exclusion checker", zap.Int("domains", len(normalized)))
	}

	return &Checker{
		domains: normalized,
		logger:  logger,
	}
}

// IsExcluded reports whether the sender's domain is excluded
func (c *Checker) IsExcluded(sender string) bool {
	if len(c.domains) == 0 {
		return false
	}

	at := strings.LastIndex(sender, "@")
	if at < 0 || at == len(sender)-1 {
		return false
	}
	domain := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(sender[at+1:]), ">"))

	for d := domain; d != ""; {
		if _, ok := c.domains[d]; ok {
			c.logger.Debug("Sender excluded from AI classification",
				zap.String("domain", domain),
				zap.String("sender", sender))
			return true
		}
		dot := strings.IndexByte(d, '.')
		if dot < 0 {
			break
		}
		d = d[dot+1:]
	}

	return false
}
