package ui

import "github.com/bamsammich/ferry/internal/stats"

// quietPresenter drains events and prints nothing; failures still reach the
// log and the exit code.
type quietPresenter struct {
	stats stats.Reader
}

func (p *quietPresenter) Run(events <-chan Event) error {
	for range events {
	}
	return nil
}

func (p *quietPresenter) Summary() string {
	return ""
}
