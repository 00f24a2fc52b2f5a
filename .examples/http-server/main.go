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

// Command http-server wires the jsonlayouthttp middleware into a plain
// net/http server. Every request gets a request ID, method, and path in
// the MDC; handlers log through the request-scoped logger from the
// context.
package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/elasticflume/jsonlayout"
	"github.com/elasticflume/jsonlayout/jsonlayouthttp"
)

func main() {
	handler, err := jsonlayout.NewHandler(os.Stdout,
		jsonlayout.WithLoggerName("http.access"),
		jsonlayout.WithMDCKeys(
			jsonlayouthttp.MDCRequestID,
			jsonlayouthttp.MDCMethod,
			jsonlayouthttp.MDCPath,
		),
	)
	if err != nil {
		log.Fatalf("failed to create jsonlayout handler: %v", err)
	}
	defer handler.Close()
	logger := slog.New(handler)

	mux := http.NewServeMux()
	mux.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
		jsonlayout.Logger(r.Context()).InfoContext(r.Context(), "saying hello")
		_, _ = w.Write([]byte("hello\n"))
	})

	srv := &http.Server{
		Addr:    ":8080",
		Handler: jsonlayouthttp.Middleware(jsonlayouthttp.WithLogger(logger))(mux),
	}
	log.Fatal(srv.ListenAndServe())
}
