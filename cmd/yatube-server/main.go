package main

import (
	"fmt"
	"os"

	_ "github.com/mikepea/yatube/api/swagger"
)

// @title Yatube API
// @version 1.0
// @description A blogging platform: posts with optional images, comments, topic groups and follows.

// @contact.name Yatube Support
// @contact.url https://github.com/mikepea/yatube

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT access token. Format: "Bearer {token}"

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
