package httpapi

import (
	"errors"
	"strconv"
	"strings"

	"github.com/GuilhermeSoares009/signal-filter/internal/audit"
)

const (
	maxSignalIDLength = 128
	maxSourceLength   = 256
)

type signalRequest struct {
	SignalID string `json:"signalId"`
	Source   string `json:"source"`
}

type signalResponse struct {
	SignalID string `json:"signalId"`
	Allowed  bool   `json:"allowed"`
	TraceID  string `json:"traceId"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Filter   string `json:"filter"`
	Limit    int    `json:"limit"`
	WindowMs int64  `json:"windowMs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type auditResponse struct {
	Allowed  int64         `json:"allowed"`
	Rejected int64         `json:"rejected"`
	Entries  []audit.Entry `json:"entries"`
}

func (req signalRequest) Validate() error {
	if len(req.SignalID) > maxSignalIDLength {
		return errors.New("signalId must be at most " + strconv.Itoa(maxSignalIDLength) + " characters")
	}
	if strings.ContainsAny(req.SignalID, " \t\r\n") {
		return errors.New("signalId must not contain whitespace")
	}
	if len(req.Source) > maxSourceLength {
		return errors.New("source must be at most " + strconv.Itoa(maxSourceLength) + " characters")
	}
	return nil
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
