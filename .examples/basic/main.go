// Copyright 2026 The elasticflume Authors
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

// Command basic illustrates minimal jsonlayout usage writing log lines to
// stdout.
package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/elasticflume/jsonlayout"
)

func main() {
	handler, err := jsonlayout.NewHandler(os.Stdout,
		jsonlayout.WithLoggerName("org.elasticflume.example"),
	)
	if err != nil {
		log.Fatalf("failed to create jsonlayout handler: %v", err)
	}
	defer handler.Close()

	slog.New(handler).Info("service ready")
}
