package app

import (
	"time"

	"go.uber.org/zap"
)

// App wires the record store, approval workflow and roster aggregator to a
// single Store handle.
type App struct {
	Store Store
	Log   *zap.Logger

	// Clock defaults to time.Now; "today" is its calendar day.
	Clock func() time.Time

	// Publisher receives records after they are approved. Optional.
	Publisher Publisher

	Tokens   *TokenIssuer
	Calendar *GoogleCalendarConfig
}

func (a *App) logger() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

func (a *App) today() Date {
	if a.Clock == nil {
		return DateOf(time.Now())
	}
	return DateOf(a.Clock())
}
