// demo-upstream serves a tiny FAT-shaped constants tree for local runs:
//
//	go run ./hack/demo-upstream &
//	FRAMEGATE_UPSTREAM_BASE_URLS=http://localhost:9000/constants framegate serve --config hack/demo-upstream/framegate.yaml
package main

import (
	"net/http"
	"os"
	"strings"
	"time"

	"framegate/internal/logging"
)

var files = map[string]string{
	"/constants/gamedetails/DemoGameDetails.json": `{
  "fullName": "Demo Game",
  "abbrName": "DG",
  "characterList": ["Rex", "Zed"],
  "statsPoints": {"health": "Health"}
}`,
	"/constants/framedata/DemoFrameData.json": `{
  "Rex": {"moves": {"normal": {"5P": {"startup": 4, "active": 2, "recovery": 7}}}},
  "Zed": {"moves": {"normal": {"5K": {"startup": 6, "active": 3, "recovery": 12}}}}
}`,
}

func main() {
	logger := logging.New("info")

	mux := http.NewServeMux()
	mux.HandleFunc("/constants/", func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		http.ServeContent(w, r, r.URL.Path, time.Time{}, strings.NewReader(body))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	logger.Info("demo-upstream listening", "addr", ":9000")
	if err := http.ListenAndServe(":9000", mux); err != nil {
		logger.Error("demo-upstream stopped", "err", err)
		os.Exit(1)
	}
}
