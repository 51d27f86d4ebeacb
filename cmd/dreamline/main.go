package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dreamline/internal/account"
	"github.com/smallbiznis/dreamline/internal/admission"
	"github.com/smallbiznis/dreamline/internal/audit"
	"github.com/smallbiznis/dreamline/internal/authorization"
	"github.com/smallbiznis/dreamline/internal/clock"
	"github.com/smallbiznis/dreamline/internal/config"
	"github.com/smallbiznis/dreamline/internal/dedup"
	"github.com/smallbiznis/dreamline/internal/identity"
	"github.com/smallbiznis/dreamline/internal/interpreter"
	"github.com/smallbiznis/dreamline/internal/ledger"
	"github.com/smallbiznis/dreamline/internal/migration"
	"github.com/smallbiznis/dreamline/internal/monitor"
	"github.com/smallbiznis/dreamline/internal/notification"
	"github.com/smallbiznis/dreamline/internal/observability"
	"github.com/smallbiznis/dreamline/internal/order"
	"github.com/smallbiznis/dreamline/internal/ratelimit"
	"github.com/smallbiznis/dreamline/internal/redisconn"
	"github.com/smallbiznis/dreamline/internal/server"
	"github.com/smallbiznis/dreamline/internal/settings"
	"github.com/smallbiznis/dreamline/internal/settlement"
	"github.com/smallbiznis/dreamline/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		redisconn.Module,
		migration.Module,

		// Access and audit
		audit.Module,
		authorization.Module,
		identity.Module,

		// Functional Domains
		account.Module,
		admission.Module,
		dedup.Module,
		interpreter.Module,
		settings.Module,
		ledger.Module,
		settlement.Module,
		order.Module,

		// Side channels
		notification.Module,
		ratelimit.Module,
		monitor.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
