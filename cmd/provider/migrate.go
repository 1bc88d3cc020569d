/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"github.com/urfave/cli/v2"

	"github.com/trustbloc/datatoken-provider-go/pkg/config"
	"github.com/trustbloc/datatoken-provider-go/pkg/store"
)

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "create or update the database schema",
	Action: func(c *cli.Context) error {
		cfg, err := config.FromFile(c.String(flagConfig))
		if err != nil {
			return err
		}

		db, err := store.Open(cfg.Database.DSN)
		if err != nil {
			return err
		}

		return store.Migrate(db)
	},
}
