package main

import (
	"flag"
	"net/http"
	"perdisweb-backend/lib/configutil"
	"perdisweb-backend/lib/serviceutil"
	"perdisweb-backend/services/dienstplan/server"
)

type Config struct {
	Port int `json:"port"`
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}

	mux := http.NewServeMux()
	server.Register(mux, server.Options{})

	go serviceutil.StartHttpServer(cfg.Port, mux)
	<-ctx.Done()
}
