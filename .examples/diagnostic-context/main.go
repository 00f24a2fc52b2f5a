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

// Command diagnostic-context shows the mapped and nested diagnostic
// contexts. MDC values and NDC scopes are carried on the context; only the
// MDC keys configured on the handler appear in the output, in configured
// order.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/elasticflume/jsonlayout"
)

func main() {
	handler, err := jsonlayout.NewHandler(os.Stdout,
		jsonlayout.WithLoggerName("org.elasticflume.ingest"),
		jsonlayout.WithMDCKeys("UserId", "ProjectId"),
	)
	if err != nil {
		log.Fatalf("failed to create jsonlayout handler: %v", err)
	}
	defer handler.Close()
	logger := slog.New(handler)

	ctx := jsonlayout.WithMDCValues(context.Background(), map[string]string{
		"UserId":    "U1",
		"ProjectId": "P1",
		"SessionId": "ignored", // not configured on the handler
	})
	ctx = jsonlayout.PushNDC(ctx, "ingest")
	ctx = jsonlayout.PushNDC(ctx, "batch-42")

	logger.InfoContext(ctx, "processing batch")
}
