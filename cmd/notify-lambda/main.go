// Package main provides the Lambda entry point for notification
// subscriptions and dispatch history.
//
// Endpoints:
//
//	POST /v1/notify/subscribe      email + species list -> SNS subscription
//	POST /v1/notify/unsubscribe    remove species (or all) for an email
//	GET  /v1/notify/subscriptions  list subscriptions for an email
//	GET  /v1/notify/history        dispatch history for an email
//	GET  /v1/notify/stats          aggregate dispatch counts
//
// Each email subscription carries an SNS FilterPolicy on the species
// message attribute, so delivery filtering happens inside SNS.
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"github.com/nlawson/birdtag/internal/lambdaboot"
	"github.com/nlawson/birdtag/internal/logging"
	"github.com/nlawson/birdtag/internal/notify"
	"github.com/nlawson/birdtag/internal/store"
	"github.com/nlawson/birdtag/internal/webutil"
)

var srv *server

func init() {
	if !lambdaboot.InLambda() {
		return
	}

	initStart := time.Now()
	logging.Init()

	awsClients := lambdaboot.InitAWS()
	mediaStore := lambdaboot.InitDynamo(awsClients.Config, "MEDIA_TABLE_NAME")
	snsClient, topicARN := lambdaboot.InitSNS(awsClients.Config, "DETECTION_TOPIC_ARN")

	srv = &server{
		store: mediaStore,
		subs:  notify.NewPublisher(snsClient, topicARN),
	}

	lambdaboot.StartupLog("notify-lambda", initStart).
		DynamoTable("media", logging.EnvOrDefault("MEDIA_TABLE_NAME", "")).
		SNSTopic("detections", topicARN).
		Log()
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", handleHealth)
	mux.HandleFunc("/v1/notify/subscribe", srv.handleSubscribe)
	mux.HandleFunc("/v1/notify/unsubscribe", srv.handleUnsubscribe)
	mux.HandleFunc("/v1/notify/subscriptions", srv.handleSubscriptions)
	mux.HandleFunc("/v1/notify/history", srv.handleHistory)
	mux.HandleFunc("/v1/notify/stats", srv.handleStats)

	handler := webutil.WithPreflight(webutil.WithMetrics(mux))
	adapter := httpadapter.NewV2(handler)
	lambda.Start(adapter.ProxyWithContext)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	webutil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "notify"})
}

// subscriptionManager is the slice of notify.Publisher the handlers
// use, extracted for tests.
type subscriptionManager interface {
	Subscribe(ctx context.Context, email string, species []string) (string, error)
	Unsubscribe(ctx context.Context, subscriptionARN string) error
}

type server struct {
	store store.MediaStore
	subs  subscriptionManager
}
