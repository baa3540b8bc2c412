package main

import (
	"github.com/openrepurpose/netprox/internal/server"
	"github.com/openrepurpose/netprox/internal/util"
	"github.com/openrepurpose/netprox/pkg/logger"
	"github.com/openrepurpose/netprox/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Prefix: "api",
	})
	logger.Init(consoleLogger)

	server.Init()
}
