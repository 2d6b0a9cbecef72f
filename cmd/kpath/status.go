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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusCmd queries a running kpath server's /status endpoint and prints
// the index lifecycle state (§4.6).
type StatusCmd struct {
	Addr string `help:"Host:port of a running kpath server." default:"localhost:8080"`
}

func (c *StatusCmd) Run(cli *CLI) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/api/v1/search/status", c.Addr))
	if err != nil {
		return fmt.Errorf("reaching %s: %w", c.Addr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var pretty map[string]any
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}
	encoded, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(encoded))
	return nil
}
