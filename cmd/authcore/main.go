// Package main is the entry point for the authcore server.
package main

// @title           Authcore API
// @version         1.0
// @description     Credential and token lifecycle API: registration, login, refresh, email verification and password reset.

// @contact.name   Authcore OSS
// @contact.url    https://github.com/custodia-labs/authcore/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"fmt"
	"os"

	_ "github.com/custodia-labs/authcore/docs"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
