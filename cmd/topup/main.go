package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/topup/internal/config"
	"github.com/smallbiznis/topup/internal/observability"
	"github.com/smallbiznis/topup/internal/server"
	"github.com/smallbiznis/topup/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
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
