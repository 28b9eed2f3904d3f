package smbus

import (
	"time"
)

// Config holds the engine timing parameters. The defaults match the
// hardware contract; tests shrink them for fast deterministic runs.
type Config struct {
	// Timeout bounds each status polling stage.
	Timeout time.Duration
	// PollInterval is the delay between status register reads.
	PollInterval time.Duration
	// WriteDelay is the settle time after starting a write transaction.
	WriteDelay time.Duration
	// EepromWriteDelay replaces WriteDelay when the target is an SPD
	// EEPROM address, covering the internal write-cycle time.
	EepromWriteDelay time.Duration
}

// DefaultConfig returns the production timing parameters.
func DefaultConfig() Config {
	return Config{
		Timeout:          1000 * time.Millisecond,
		PollInterval:     50 * time.Microsecond,
		WriteDelay:       10 * time.Millisecond,
		EepromWriteDelay: 25 * time.Millisecond,
	}
}

// protocol is the per-family register driver. Exactly one implementation
// is selected at initialization and reused for every transaction, so
// callers never branch on the platform family.
type protocol interface {
	// execute runs one transaction, filling Output and Status. It returns
	// false when the terminal status is Error or Timeout.
	execute(t *Transaction) bool

	// supportsBus reports whether the controller exposes the given
	// logical bus number.
	supportsBus(bus uint8) bool
}

// writeSettle sleeps the EEPROM-aware post-write delay.
func writeSettle(cfg *Config, t *Transaction) {
	if t.Access != AccessWrite {
		return
	}
	if isEepromAddress(t.Address) {
		time.Sleep(cfg.EepromWriteDelay)
	} else {
		time.Sleep(cfg.WriteDelay)
	}
}

// pollUntil polls read until done accepts the decoded status or the
// configured timeout elapses. A backend fault decodes as Error.
func pollUntil(cfg *Config, read func() (Status, error), done func(Status) bool) Status {
	deadline := time.Now().Add(cfg.Timeout)
	for {
		status, err := read()
		if err != nil {
			return StatusError
		}
		if done(status) {
			return status
		}
		if time.Now().After(deadline) {
			return StatusTimeout
		}
		time.Sleep(cfg.PollInterval)
	}
}

// terminal accepts the states a started transaction can settle in.
func terminal(s Status) bool {
	return s == StatusReady || s == StatusSuccess || s == StatusError
}
