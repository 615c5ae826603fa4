// Local development server: exposes the Lambda handlers over plain HTTP so
// Slack can reach them through a tunnel. Secrets come from the environment
// (or a .env file) instead of Parameter Store.
package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"standup-bot/handler"
	"standup-bot/internal/config"
	"standup-bot/internal/integrations/paramstore"
	"standup-bot/internal/integrations/slackapi"
	"standup-bot/internal/repository"
	"standup-bot/internal/signature"
	"standup-bot/internal/usecase"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	dynamoClient, err := repository.NewClient(ctx, cfg)
	if err != nil {
		slog.Error("failed to create DynamoDB client", "err", err)
		os.Exit(1)
	}
	store, err := repository.New(dynamoClient, cfg.TableName)
	if err != nil {
		slog.Error("failed to create submission store", "err", err)
		os.Exit(1)
	}

	secrets := paramstore.EnvGetter{}
	slackClient, err := slackapi.NewClient(secrets, cfg.ParamPrefix)
	if err != nil {
		slog.Error("failed to create Slack client", "err", err)
		os.Exit(1)
	}

	verifier, err := signature.New(func() (string, error) {
		return secrets.GetParameter(ctx, cfg.SigningSecretParam())
	}, signature.WithTolerance(cfg.SkewTolerance))
	if err != nil {
		slog.Error("failed to create signature verifier", "err", err)
		os.Exit(1)
	}

	standup, err := usecase.NewStandup(store, slackClient, cfg.MaxTextLength)
	if err != nil {
		slog.Error("failed to create standup dispatcher", "err", err)
		os.Exit(1)
	}
	digest, err := usecase.NewDigest(store, slackClient, cfg.SummaryChannelID, cfg.Location())
	if err != nil {
		slog.Error("failed to create digest aggregator", "err", err)
		os.Exit(1)
	}

	api, err := handler.NewHandler(verifier, standup)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/standup", proxy(api))
	r.Post("/interactive", proxy(api))
	r.Post("/digest/run", func(w http.ResponseWriter, req *http.Request) {
		report, err := digest.Run(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		slog.Info("digest posted", "day", report.DayLabel, "submissions", report.Count, "users", report.Users)
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := ":" + cfg.AppPort
	slog.Info("listening", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

// proxy adapts a plain HTTP request into the API Gateway event shape the
// Lambda handler consumes.
func proxy(h *handler.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		headers := make(map[string]string, len(req.Header))
		for name := range req.Header {
			headers[name] = req.Header.Get(name)
		}

		resp, err := h.Handle(req.Context(), events.APIGatewayProxyRequest{
			HTTPMethod: req.Method,
			Path:       req.URL.Path,
			Headers:    headers,
			Body:       string(body),
		})
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		for name, value := range resp.Headers {
			w.Header().Set(name, value)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.WriteString(w, resp.Body)
	}
}
