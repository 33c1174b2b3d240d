// seed.go
//
// A hypertext-driven ITSM REST API service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of itsm-api.
// itsm-api is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// itsm-api is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with itsm-api.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/localnerve/itsm-api/data"
	"github.com/localnerve/itsm-api/internal/resources"
)

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [fixture]",
		Short: "Load a YAML or JSON fixture into an empty store",
		Long: `Load a fixture into an empty store. Without an argument the bundled
example data is loaded. Seeding a store that holds data fails.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer b.Close()

			fixture, err := resources.ParseFixture(data.Fixture)
			source := "bundled example data"
			if len(args) == 1 {
				source = args[0]
				fixture, err = readFixture(args[0])
			}
			if err != nil {
				return err
			}
			if err := b.svc.Seed(cmd.Context(), fixture); err != nil {
				return fmt.Errorf("failed to seed store: %w", err)
			}
			slog.Info("store seeded", "source", source)
			return nil
		},
	}
}

func readFixture(path string) (*resources.Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return resources.ParseFixture(raw)
}
