// Package models holds the wire types of the status API.
package models

import (
	"time"

	"github.com/botsentinel/botsentinel/internal/bot"
	"github.com/botsentinel/botsentinel/internal/check"
	"github.com/botsentinel/botsentinel/internal/failover"
	"github.com/botsentinel/botsentinel/internal/scheduler"
)

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// StatusResponse is the aggregate operational snapshot.
type StatusResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	BuildTime string            `json:"buildTime"`
	Pool      bot.PoolStats     `json:"pool"`
	Sweeps    scheduler.Metrics `json:"sweeps"`
	Failover  failover.Metrics  `json:"failover"`
	Time      time.Time         `json:"time"`
}

// BotDetail is one bot plus its latest diagnostic report, if any.
type BotDetail struct {
	Bot    *bot.Bot      `json:"bot"`
	Report *check.Report `json:"report,omitempty"`
}

// BotListResponse wraps the bot collection.
type BotListResponse struct {
	Bots  []*bot.Bot `json:"bots"`
	Count int        `json:"count"`
}

// SwapResponse reports the result of a manual failover request.
type SwapResponse struct {
	Result   failover.SwapResult `json:"result"`
	Operator string              `json:"operator"`
}
