// Copyright 2026 KPATH Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
)

// RebuildCmd rebuilds the vector index(es) from the registry in-process,
// without starting the HTTP server. Useful for warming a snapshot ahead
// of a deploy or after a bulk registry import.
type RebuildCmd struct {
	Target string `help:"Which index to rebuild: services, tools, or all." enum:"services,tools,all" default:"all"`
}

func (c *RebuildCmd) Run(cli *CLI) error {
	log := initLogger(cli)
	ctx := context.Background()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	switch c.Target {
	case "services":
		err = a.manager.RebuildServices(ctx)
	case "tools":
		err = a.manager.RebuildTools(ctx)
	default:
		err = a.manager.BuildAll(ctx)
	}
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	status := a.manager.Status()
	fmt.Printf("rebuild complete: state=%s services=%d tools=%d model=%s\n",
		status.State, status.ServiceCount, status.ToolCount, status.Model)
	return nil
}
