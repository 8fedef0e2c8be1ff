package main

// @title           Ask Richie API
// @version         1.0
// @description     Retrieval-augmented answers in Richie's voice over a curated property-investment corpus, with a speech proxy for voice clients.

// @contact.name   Custodia Labs
// @contact.url    https://github.com/custodia-labs/askrichie/issues

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"os"

	"github.com/custodia-labs/askrichie/internal/adapters/driving/cli"
)

var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
