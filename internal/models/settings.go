package models

import (
	"fmt"
	"time"
)

// TestSettings carries the timings handed to the driver when a sequential
// inspection is requested, plus the budget for one command round trip.
type TestSettings struct {
	MeasurementDuration time.Duration
	WaitDuration        time.Duration
	Interval            time.Duration
	CommandTimeout      time.Duration
}

// DefaultTestSettings mirrors the stock sequential-inspection timings.
func DefaultTestSettings() TestSettings {
	return TestSettings{
		MeasurementDuration: 10 * time.Second,
		WaitDuration:        2 * time.Second,
		Interval:            250 * time.Millisecond,
		CommandTimeout:      5 * time.Second,
	}
}

func (s TestSettings) Validate() error {
	if s.MeasurementDuration <= 0 {
		return fmt.Errorf("measurement duration must be positive")
	}
	if s.WaitDuration < 0 {
		return fmt.Errorf("wait duration cannot be negative")
	}
	if s.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if s.CommandTimeout <= 0 {
		return fmt.Errorf("command timeout must be positive")
	}
	return nil
}
