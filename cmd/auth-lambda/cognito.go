package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	cognitotypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/apierr"
)

// cognitoAuth backs the authenticator with a Cognito user pool app
// client.
type cognitoAuth struct {
	client   *cognitoidentityprovider.Client
	clientID string
}

func (c *cognitoAuth) Register(ctx context.Context, email, password string) error {
	_, err := c.client.SignUp(ctx, &cognitoidentityprovider.SignUpInput{
		ClientId: &c.clientID,
		Username: &email,
		Password: &password,
		UserAttributes: []cognitotypes.AttributeType{
			{Name: aws.String("email"), Value: &email},
		},
	})
	if err != nil {
		return translateCognitoError(err, "registration failed")
	}

	log.Info().Str("email", email).Msg("User registered")
	return nil
}

func (c *cognitoAuth) Login(ctx context.Context, email, password string) (*Tokens, error) {
	output, err := c.client.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		ClientId: &c.clientID,
		AuthFlow: cognitotypes.AuthFlowTypeUserPasswordAuth,
		AuthParameters: map[string]string{
			"USERNAME": email,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return nil, translateCognitoError(err, "login failed")
	}
	if output.AuthenticationResult == nil {
		return nil, apierr.New(apierr.CodeAuthError, http.StatusUnauthorized, "additional challenge required")
	}

	result := output.AuthenticationResult
	return &Tokens{
		IDToken:      aws.ToString(result.IdToken),
		AccessToken:  aws.ToString(result.AccessToken),
		RefreshToken: aws.ToString(result.RefreshToken),
		ExpiresIn:    result.ExpiresIn,
	}, nil
}

func (c *cognitoAuth) Verify(ctx context.Context, email, code string) error {
	_, err := c.client.ConfirmSignUp(ctx, &cognitoidentityprovider.ConfirmSignUpInput{
		ClientId:         &c.clientID,
		Username:         &email,
		ConfirmationCode: &code,
	})
	if err != nil {
		return translateCognitoError(err, "verification failed")
	}

	log.Info().Str("email", email).Msg("User verified")
	return nil
}

// translateCognitoError maps Cognito API errors to client-facing error
// codes without leaking backend detail.
func translateCognitoError(err error, fallback string) error {
	var (
		usernameExists   *cognitotypes.UsernameExistsException
		notAuthorized    *cognitotypes.NotAuthorizedException
		userNotFound     *cognitotypes.UserNotFoundException
		userNotConfirmed *cognitotypes.UserNotConfirmedException
		invalidPassword  *cognitotypes.InvalidPasswordException
		codeMismatch     *cognitotypes.CodeMismatchException
		codeExpired      *cognitotypes.ExpiredCodeException
	)

	switch {
	case errors.As(err, &usernameExists):
		return apierr.New(apierr.CodeAuthError, http.StatusConflict, "an account with this email already exists")
	case errors.As(err, &notAuthorized), errors.As(err, &userNotFound):
		return apierr.New(apierr.CodeAuthError, http.StatusUnauthorized, "invalid email or password")
	case errors.As(err, &userNotConfirmed):
		return apierr.New(apierr.CodeAuthError, http.StatusForbidden, "account is not verified")
	case errors.As(err, &invalidPassword):
		return apierr.New(apierr.CodeInvalidInput, http.StatusBadRequest, "password does not meet requirements")
	case errors.As(err, &codeMismatch), errors.As(err, &codeExpired):
		return apierr.New(apierr.CodeInvalidInput, http.StatusBadRequest, "invalid or expired verification code")
	default:
		return apierr.Internal(apierr.CodeAuthError, fallback, err)
	}
}
