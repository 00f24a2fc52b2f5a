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

// Command file-rotation logs to a file and reopens it on SIGHUP, the
// handshake external rotation tools like logrotate expect.
package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/elasticflume/jsonlayout"
)

func main() {
	handler, err := jsonlayout.NewHandler(nil,
		jsonlayout.WithLoggerName("org.elasticflume.collector"),
		jsonlayout.WithRedirectToFile("collector.log"),
	)
	if err != nil {
		log.Fatalf("failed to create jsonlayout handler: %v", err)
	}
	defer handler.Close()
	logger := slog.New(handler)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if err := handler.ReopenLogFile(); err != nil {
				logger.Error("log reopen failed", slog.Any("error", err))
			}
		}
	}()

	logger.Info("collector started")
}
