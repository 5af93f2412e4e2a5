package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/condofee/internal/clock"
	"github.com/smallbiznis/condofee/internal/config"
	"github.com/smallbiznis/condofee/internal/migration"
	"github.com/smallbiznis/condofee/internal/observability"
	"github.com/smallbiznis/condofee/internal/server"
	"github.com/smallbiznis/condofee/pkg/db"
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
		migration.Module,

		// Billing, ledger, gateway and the HTTP surface
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
