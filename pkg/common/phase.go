package common

import (
	"time"
)

type MarketPhase int

const (
	MarketPhasePreMarket MarketPhase = iota
	MarketPhaseOpen
	MarketPhasePostMarket
	MarketPhaseClosed
)

func (p MarketPhase) String() string {
	switch p {
	case MarketPhasePreMarket:
		return "premarket"
	case MarketPhaseOpen:
		return "open"
	case MarketPhasePostMarket:
		return "postmarket"
	case MarketPhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Extended reports whether the phase only trades for extended hours orders.
func (p MarketPhase) Extended() bool {
	return p == MarketPhasePreMarket || p == MarketPhasePostMarket
}

type MarketPhaseChange struct {
	From      MarketPhase `json:"from"`
	To        MarketPhase `json:"to"`
	TimeStamp time.Time   `json:"ts"`
}
