package main

import (
	"fmt"
	"time"

	"bullion/internal/compliance"
	"bullion/internal/metal"
	"bullion/internal/platform/config"
	"bullion/internal/platform/middleware"
)

func compliancePolicy(cfg config.Compliance) (compliance.Policy, error) {
	p := compliance.Policy{
		AMLValidity:        cfg.AMLValidity,
		ReportingThreshold: cfg.ReportingThreshold,
		ReportableMetals:   make(map[metal.Metal]bool, len(cfg.ReportableMetals)),
	}
	for _, name := range cfg.ReportableMetals {
		m, err := metal.ParseMetal(name)
		if err != nil {
			return compliance.Policy{}, fmt.Errorf("AML_REPORTABLE_METALS: %w", err)
		}
		p.ReportableMetals[m] = true
	}
	return p, nil
}

// newLimiter returns nil when throttling is disabled.
func newLimiter(perMinute int) *middleware.OperatorLimiter {
	if perMinute <= 0 {
		return nil
	}
	return middleware.NewOperatorLimiter(perMinute, time.Minute)
}
