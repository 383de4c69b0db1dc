package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/pratik-mahalle/costmonitor/internal/app"
	"github.com/pratik-mahalle/costmonitor/internal/config"
	"github.com/pratik-mahalle/costmonitor/internal/domain/report"
	"github.com/pratik-mahalle/costmonitor/internal/pkg/logger"
)

// Response is the invocation result returned to the scheduler that triggered us
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type reportRunner interface {
	Run(ctx context.Context, trigger report.Trigger) (*report.Run, error)
}

// handle runs one report. Guard rejections succeed with a skipped body; any other
// failure is returned so the invocation is marked failed.
func handle(ctx context.Context, runner reportRunner) (Response, error) {
	run, err := runner.Run(ctx, report.TriggerLambda)
	if err != nil {
		return Response{}, err
	}

	body := "Cost report sent successfully"
	if run.Status == report.RunStatusSkipped {
		body = fmt.Sprintf("Cost report skipped: %s", run.Reason)
	}

	encoded, _ := json.Marshal(body)
	return Response{StatusCode: http.StatusOK, Body: string(encoded)}, nil
}

func main() {
	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: "json",
		Output: os.Stdout,
	})

	// Built once per container so the email guard persists across warm invocations
	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.ErrorWithErr(err, "Failed to initialize")
		os.Exit(1)
	}
	defer a.Close()

	lambda.Start(func(ctx context.Context, _ json.RawMessage) (Response, error) {
		return handle(ctx, a.Reports)
	})
}
