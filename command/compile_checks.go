package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-contracts/core"
)

var (
	_ gocmd.Commander[OfferingEventMessage] = (*OfferingEventCommand)(nil)
	_ gocmd.Commander[QuoteEventMessage]    = (*QuoteEventCommand)(nil)
	_ gocmd.Commander[OrderEventMessage]    = (*OrderEventCommand)(nil)

	_ EventService = (*core.Service)(nil)
)
