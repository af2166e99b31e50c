package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/lexpoint/leadforms/cmd/mainconfig"
	"github.com/lexpoint/leadforms/internal/app/bootstrap"
	appconfig "github.com/lexpoint/leadforms/internal/config"
	"github.com/lexpoint/leadforms/internal/http/respond"
	"github.com/lexpoint/leadforms/internal/leads"
	"github.com/lexpoint/leadforms/internal/nonblocking"
	"github.com/lexpoint/leadforms/internal/webhook"
	"github.com/lexpoint/leadforms/pkg/logging"
)

const webhookPath = "/webhooks/leads"

// drainTimeout bounds how long an invocation waits for emails and the archive
// write before the runtime freezes the sandbox.
const drainTimeout = 8 * time.Second

// waiter blocks until background tasks started during an invocation finish.
type waiter interface {
	Wait(ctx context.Context) error
}

type app struct {
	receiver webhook.Receiver
	tasks    waiter
	logger   *logging.Logger
}

var corsHeaders = map[string]string{
	"access-control-allow-origin":  "*",
	"access-control-allow-methods": "POST, OPTIONS",
	"access-control-allow-headers": "Authorization, Content-Type, X-Request-ID",
}

func main() {
	ctx := context.Background()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).Component("webhook-lambda")

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil || pool == nil {
		logger.Error("webhook lambda requires a reachable DATABASE_URL", "error", err)
		os.Exit(1)
	}

	var awsCfg aws.Config
	if mainconfig.NeedsAWS(cfg) {
		if awsCfg, err = mainconfig.LoadAWSConfig(ctx, cfg); err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
	}

	var mappings webhook.MappingStore = webhook.NewMemoryMappingStore()
	if redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true); redisClient != nil {
		mappings = webhook.NewRedisMappingStore(redisClient, webhook.DefaultMappingKey)
	}

	runner := nonblocking.NewRunner(logger, nil)
	opts := []webhook.Option{
		webhook.WithNotifier(bootstrap.BuildNotifyService(cfg, bootstrap.BuildEmailSender(cfg, awsCfg, logger), logger)),
	}
	if store := bootstrap.BuildArchiveStore(cfg, awsCfg, logger); store != nil {
		opts = append(opts, webhook.WithArchiver(store))
	}
	svc := webhook.NewService(leads.NewPostgresRepository(pool), mappings, runner, logger, opts...)

	a := &app{receiver: svc, tasks: runner, logger: logger}
	lambda.Start(a.handle)
}

func (a *app) handle(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}

	if path == "/health" || path == "/_health" {
		return jsonResponse(http.StatusOK, map[string]string{"status": "ok"}), nil
	}
	if path != webhookPath {
		return jsonResponse(http.StatusNotFound, respond.ErrorBody{Error: "Not found"}), nil
	}

	switch method {
	case http.MethodOptions:
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNoContent, Headers: withCORS(nil)}, nil
	case http.MethodPost:
	default:
		return jsonResponse(http.StatusMethodNotAllowed, respond.ErrorBody{Error: "Method not allowed"}), nil
	}

	body, err := decodeBody(evt)
	if err != nil {
		return jsonResponse(http.StatusBadRequest, respond.ErrorBody{Error: "Invalid body encoding", Details: err.Error()}), nil
	}

	outcome, err := a.receiver.Receive(ctx, body)
	a.drain(ctx)
	if err != nil {
		status, errBody := webhook.ErrorResponse(err)
		return jsonResponse(status, errBody), nil
	}
	return jsonResponse(http.StatusOK, webhook.ReceiveResponse{
		Success: true,
		Message: "Lead received",
		LeadID:  outcome.Lead.ID,
		Data:    outcome.Data,
	}), nil
}

// drain waits for the invocation's background tasks. The sandbox may be frozen
// as soon as the handler returns, so nothing is left running.
func (a *app) drain(ctx context.Context) {
	if a.tasks == nil {
		return
	}
	waitCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	if err := a.tasks.Wait(waitCtx); err != nil {
		a.logger.Warn("background tasks still running at response time", "error", err)
	}
}

func jsonResponse(status int, payload any) events.APIGatewayV2HTTPResponse {
	data, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"error":"Failed to encode response"}`)
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(data),
		Headers:    withCORS(map[string]string{"content-type": "application/json"}),
	}
}

func withCORS(headers map[string]string) map[string]string {
	if headers == nil {
		headers = map[string]string{}
	}
	for k, v := range corsHeaders {
		headers[k] = v
	}
	return headers
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}
