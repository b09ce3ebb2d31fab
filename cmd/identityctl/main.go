package main

import (
	"context"

	"github.com/dmitrijs2005/identityd/internal/client/cli"
	"github.com/dmitrijs2005/identityd/internal/client/config"
)

func main() {

	ctx := context.Background()
	cfg := config.MustLoad()
	app := cli.NewApp(cfg)

	app.Run(ctx)

}
