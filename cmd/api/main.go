package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"support-insights-go/internal/config"
	"support-insights-go/internal/dataset"
	"support-insights-go/internal/llm"
	"support-insights-go/internal/logger"
	"support-insights-go/internal/pipeline"
	"support-insights-go/internal/report"
	"support-insights-go/internal/types"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "support-insights-go").Info("starting service")

	cfg := config.Default()
	if path := os.Getenv("TAXONOMY_PATH"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			log.WithError(err).Fatal("failed to load taxonomy config")
		}
		cfg = loaded
		log.WithField("taxonomy_path", path).WithField("topics", len(cfg.Taxonomy)).Info("taxonomy loaded")
	}

	llmClient := llm.New(cfg.LLM, log)
	pipe := pipeline.New(cfg, llmClient, log)

	mux := http.NewServeMux()

	// health
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.New().WithRequest(r).Info("health check")
		fmt.Fprint(w, "ok")
	})

	// analyze an already-fetched batch posted as a JSON array
	mux.HandleFunc("/analyze", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "analyze")
		reqLog.Info("analyze request received")

		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var records []types.ConversationRecord
		if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
			reqLog.WithError(err).Warn("bad request body")
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		start := time.Now()
		res, err := pipe.Run(r.Context(), records)
		reqLog.WithField("duration_ms", time.Since(start).Milliseconds()).Info("pipeline finished")
		if err != nil {
			reqLog.WithError(err).Error("batch failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, reqLog, res)
	})

	// analyze the configured xlsx export (offline/demo flow)
	mux.HandleFunc("/analyze-dataset", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "analyze-dataset")
		reqLog.Info("dataset analysis invoked")

		dataPath := envOr("DATASET_PATH", "conversations.xlsx")
		records, err := dataset.Load(dataPath)
		if err != nil {
			reqLog.WithError(err).Error("dataset load error")
			http.Error(w, "dataset load error", http.StatusInternalServerError)
			return
		}
		reqLog.WithField("records", len(records)).Info("dataset loaded")

		res, err := pipe.Run(r.Context(), records)
		if err != nil {
			reqLog.WithError(err).Error("batch failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if out := os.Getenv("REPORT_PATH"); out != "" {
			if err := report.WriteWorkbook(out, res); err != nil {
				reqLog.WithError(err).Warn("workbook export failed")
			} else {
				reqLog.WithField("report_path", out).Info("workbook exported")
			}
		}
		writeJSON(w, reqLog, res)
	})

	addr := fmt.Sprintf(":%s", envOr("PORT", "8080"))
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}

func writeJSON(w http.ResponseWriter, reqLog *logrus.Entry, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		reqLog.WithError(err).Error("failed to write response")
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
