/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"os"

	"github.com/urfave/cli/v2"

	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
)

var logger = logfields.New("provider")

const flagConfig = "config"

var configFlag = &cli.StringFlag{
	Name:    flagConfig,
	Usage:   "path of the TOML configuration file",
	EnvVars: []string{"PROVIDER_CONFIG"},
}

func main() {
	app := &cli.App{
		Name:  "provider",
		Usage: "datatoken provider: order verification and consumption authorization",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			runCmd,
			migrateCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Errorf("%s", err)
		os.Exit(1)
	}
}
