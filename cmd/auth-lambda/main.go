// Package main provides the Lambda entry point for user authentication.
//
// Endpoints:
//
//	POST /v1/auth/register  create an account (email + password)
//	POST /v1/auth/login     password login, returns tokens
//	POST /v1/auth/verify    confirm the emailed verification code
//
// Accounts live in a Cognito user pool. IS_LOCAL=true swaps in an
// in-memory user table with bcrypt-hashed passwords for integration
// tests. The Cognito app client ID is read from the environment or from
// SSM Parameter Store.
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"github.com/nlawson/birdtag/internal/lambdaboot"
	"github.com/nlawson/birdtag/internal/logging"
	"github.com/nlawson/birdtag/internal/webutil"
)

var srv *server

func init() {
	if !lambdaboot.InLambda() {
		return
	}

	initStart := time.Now()
	logging.Init()

	isLocal := os.Getenv("IS_LOCAL") == "true"
	startup := lambdaboot.StartupLog("auth-lambda", initStart).Feature("localAuth", isLocal)

	if isLocal {
		srv = &server{auth: newLocalAuth()}
		startup.Log()
		return
	}

	awsClients := lambdaboot.InitAWS()
	clientID := lambdaboot.LoadSSMParam(awsClients.SSM, "COGNITO_CLIENT_ID", "/birdtag/cognito/client-id", true)
	srv = &server{auth: &cognitoAuth{
		client:   cognitoidentityprovider.NewFromConfig(awsClients.Config),
		clientID: clientID,
	}}
	startup.SSMParam("cognitoClientId", "/birdtag/cognito/client-id").Log()
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", handleHealth)
	mux.HandleFunc("/v1/auth/register", srv.handleRegister)
	mux.HandleFunc("/v1/auth/login", srv.handleLogin)
	mux.HandleFunc("/v1/auth/verify", srv.handleVerify)

	handler := webutil.WithPreflight(webutil.WithMetrics(mux))
	adapter := httpadapter.NewV2(handler)
	lambda.Start(adapter.ProxyWithContext)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	webutil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "auth"})
}
