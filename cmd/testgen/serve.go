package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/evaluator"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/handler"
	appI18n "github.com/Lifelong-Learning-Assisttant/test-generator/internal/i18n"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/llm"
	"github.com/Lifelong-Learning-Assisttant/test-generator/internal/store"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP grading and evaluation API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "testgen.db", "SQLite run index path (empty disables the index)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /testgen)")
	addCommonFlags(cmd)
	addProviderFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := appI18n.Match(v.GetString("lang"))
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	var index *store.Store
	if path := v.GetString("db"); path != "" {
		db, err := store.New(path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		index = db
	}

	results, err := store.NewResults(resultsDir(v))
	if err != nil {
		return err
	}

	logger := slog.Default()
	registry := llm.NewRegistry(llmConfig(v), logger)
	ev := evaluator.New(evaluator.FromRegistry(registry), store.NewArchive(results, index, logger), logger)
	h := handler.New(store.NewExamDir(examsDir(v)), ev, index, logger)

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, h.Routes)
	} else {
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"exams_dir", examsDir(v),
		"results_dir", results.Dir(),
		"db", v.GetString("db"),
		"base_path", basePath,
		"prompt_variant", v.GetString("prompt-variant"),
	)
	return http.ListenAndServe(addr, r)
}
