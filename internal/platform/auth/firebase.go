package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/workshop-planner/api/internal/platform/config"
)

// idTokenClient is the subset of the Admin SDK auth client used for verification.
type idTokenClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier verifies ID tokens with the Firebase Admin SDK and translates SDK
// failures into ErrTokenExpired, ErrTokenInvalid or ErrVerifierUnavailable.
type FirebaseVerifier struct {
	client       idTokenClient
	checkRevoked bool
}

// NewFirebaseVerifier initialises the Admin SDK for cfg.ProjectID. Credentials come from
// CredentialsJSON, then CredentialsFile, then the ambient environment.
func NewFirebaseVerifier(ctx context.Context, cfg config.FirebaseConfig) (*FirebaseVerifier, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	var opts []option.ClientOption
	if raw := strings.TrimSpace(cfg.CredentialsJSON); raw != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(raw)))
	} else if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client, checkRevoked: cfg.CheckRevoked}, nil
}

func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	if v == nil || v.client == nil {
		return nil, fmt.Errorf("%w: firebase verifier not initialised", ErrVerifierUnavailable)
	}
	verify := v.client.VerifyIDToken
	if v.checkRevoked {
		verify = v.client.VerifyIDTokenAndCheckRevoked
	}
	token, err := verify(ctx, idToken)
	if err != nil {
		return nil, classifyFirebaseError(err)
	}
	return token, nil
}

func classifyFirebaseError(err error) error {
	switch {
	case firebaseauth.IsIDTokenExpired(err):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case firebaseauth.IsIDTokenRevoked(err), firebaseauth.IsUserDisabled(err):
		return fmt.Errorf("%w: session revoked: %v", ErrTokenInvalid, err)
	case firebaseauth.IsCertificateFetchFailed(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
