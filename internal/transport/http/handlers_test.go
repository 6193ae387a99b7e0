package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	auditservice "aegis/internal/audit/service"
	auditmemory "aegis/internal/audit/store/memory"
	"aegis/internal/auth"
	"aegis/internal/crypto/envelope"
	"aegis/internal/messaging"
	messagingmemory "aegis/internal/messaging/store/memory"
	"aegis/internal/ratelimit/models"
	ratelimitservice "aegis/internal/ratelimit/service"
	ratelimitmemory "aegis/internal/ratelimit/store/memory"
	"aegis/internal/risk"
	"aegis/internal/verification"
	verificationservice "aegis/internal/verification/service"
	verificationmemory "aegis/internal/verification/store/memory"
	"aegis/internal/verification/verifier"
)

type HandlersSuite struct {
	suite.Suite
	router    http.Handler
	directory *auth.InMemoryDirectory
	keys      *messaging.InMemoryKeyRegistry
	tokens    *auth.TokenService
	recipient *envelope.KeyPair
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupSuite() {
	var err error
	s.recipient, err = envelope.GenerateKeyPair()
	s.Require().NoError(err)
}

func (s *HandlersSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	auditor, err := auditservice.New(auditmemory.New(), auditservice.WithRetry(0, time.Millisecond))
	s.Require().NoError(err)

	verificationSvc, err := verificationservice.New(verificationmemory.New(), verifier.NewStatic(),
		verificationservice.WithAuditor(auditor))
	s.Require().NoError(err)

	limiter, err := ratelimitservice.New(ratelimitmemory.New(), []models.Policy{
		{Name: models.PolicyLogin, Limit: 5, Window: 15 * time.Minute},
		{Name: models.PolicyRegistration, Limit: 3, Window: time.Hour},
		{Name: models.PolicyMessages, Limit: 3, Window: time.Minute},
	})
	s.Require().NoError(err)

	s.tokens, err = auth.NewTokenService("test-signing-key", "aegis", time.Hour)
	s.Require().NoError(err)

	s.directory = auth.NewInMemoryDirectory()
	authSvc, err := auth.NewService(s.directory, auth.NewGate(verificationSvc), s.tokens,
		auth.WithLimiter(limiter), auth.WithAuditor(auditor))
	s.Require().NoError(err)

	s.keys = messaging.NewInMemoryKeyRegistry()
	pubPEM, err := s.recipient.PublicPEM()
	s.Require().NoError(err)
	s.Require().NoError(s.keys.Register(context.Background(), "bob", pubPEM))

	scorer := risk.New(risk.Weights{
		Keyword:            10,
		Grooming:           25,
		Readability:        5,
		ReadabilityEase:    90,
		Emoji:              15,
		EmojiRatio:         0.3,
		Pressure:           8,
		SuspicionThreshold: 20,
	}, risk.Lexicon{
		GroomingPhrases: []string{"you can trust me"},
	})

	messagingSvc, err := messaging.New(messagingmemory.New(), s.keys, envelope.NewPool(2), scorer,
		messaging.WithLimiter(limiter), messaging.WithAuditor(auditor))
	s.Require().NoError(err)

	keystore, err := envelope.NewKeystore("test-master-seed")
	s.Require().NoError(err)
	keySvc, err := messaging.NewKeyService(s.keys, keystore)
	s.Require().NoError(err)

	s.router = NewRouter(Services{
		Verification: verificationSvc,
		Auth:         authSvc,
		Messaging:    messagingSvc,
		Keys:         keySvc,
		Tokens:       s.tokens,
	}, logger)
}

func (s *HandlersSuite) do(method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlersSuite) decodeBody(rec *httptest.ResponseRecorder, dst any) {
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(dst))
}

func (s *HandlersSuite) submitIdentity(userID string, age int) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, "/verify/identity", map[string]any{
		"user_id":         userID,
		"document_type":   "passport",
		"document_number": "P100",
		"date_of_birth":   time.Now().AddDate(-age, 0, 0).Format(time.RFC3339),
		"expires_at":      time.Now().AddDate(3, 0, 0).Format(time.RFC3339),
	}, nil)
}

func (s *HandlersSuite) TestVerifyIdentity() {
	s.Run("adult is approved", func() {
		rec := s.submitIdentity("alice", 30)
		s.Require().Equal(http.StatusOK, rec.Code)

		var outcome verification.IdentityOutcome
		s.decodeBody(rec, &outcome)
		s.Equal(verification.OutcomeApproved, outcome.Status)
		s.True(outcome.AgeVerified)
		s.Equal(30, outcome.Age)
	})

	s.Run("minor is rejected", func() {
		rec := s.submitIdentity("young", 17)
		s.Require().Equal(http.StatusOK, rec.Code)

		var outcome verification.IdentityOutcome
		s.decodeBody(rec, &outcome)
		s.Equal(verification.OutcomeRejected, outcome.Status)
		s.Equal("under minimum age", outcome.RejectionReason)
	})

	s.Run("missing fields are a validation error", func() {
		rec := s.do(http.MethodPost, "/verify/identity", map[string]any{"user_id": "alice"}, nil)
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
	})

	s.Run("malformed body", func() {
		req := httptest.NewRequest(http.MethodPost, "/verify/identity", bytes.NewReader([]byte("{")))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("wrong content type", func() {
		req := httptest.NewRequest(http.MethodPost, "/verify/identity", bytes.NewReader([]byte("{}")))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusUnsupportedMediaType, rec.Code)
	})
}

func (s *HandlersSuite) TestVerifyCertification() {
	s.Run("unrecognized type is rejected not errored", func() {
		rec := s.do(http.MethodPost, "/verify/certification", map[string]any{
			"user_id":         "carol",
			"cert_type":       "FAKE",
			"document_number": "C-1",
		}, nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var outcome verification.CertificationOutcome
		s.decodeBody(rec, &outcome)
		s.Equal(verification.OutcomeRejected, outcome.Status)
		s.Equal("type not recognized", outcome.RejectionReason)
	})

	s.Run("recognized type is approved", func() {
		rec := s.do(http.MethodPost, "/verify/certification", map[string]any{
			"user_id":         "bob",
			"cert_type":       "NASM",
			"document_number": "C-2",
			"issued_at":       time.Now().Format(time.RFC3339),
		}, nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var outcome verification.CertificationOutcome
		s.decodeBody(rec, &outcome)
		s.Equal(verification.OutcomeApproved, outcome.Status)
		s.True(outcome.CertVerified)
	})
}

func (s *HandlersSuite) TestVerifyStatus() {
	s.submitIdentity("bob", 35)

	s.Run("trainer without certification", func() {
		rec := s.do(http.MethodGet, "/verify/status/bob?role=trainer", nil, nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var view verification.StatusView
		s.decodeBody(rec, &view)
		s.True(view.AgeVerified)
		s.Equal(verification.StatusPendingCert, view.OverallStatus)
		s.True(view.RequiresCertification)
	})

	s.Run("missing role", func() {
		rec := s.do(http.MethodGet, "/verify/status/bob", nil, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown role", func() {
		rec := s.do(http.MethodGet, "/verify/status/bob?role=admin", nil, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlersSuite) TestRegister() {
	s.Run("valid registration", func() {
		rec := s.do(http.MethodPost, "/auth/register", map[string]any{
			"user_id": "dana",
			"email":   "dana@example.com",
			"role":    "trainer",
		}, nil)
		s.Require().Equal(http.StatusCreated, rec.Code)

		var user auth.User
		s.decodeBody(rec, &user)
		s.Equal("dana", user.ID)
		s.Equal(verification.RoleTrainer, user.Role)
	})

	s.Run("duplicate conflicts", func() {
		rec := s.do(http.MethodPost, "/auth/register", map[string]any{
			"user_id": "dana",
			"email":   "dana@example.com",
			"role":    "trainer",
		}, nil)
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("bad email is a validation error", func() {
		rec := s.do(http.MethodPost, "/auth/register", map[string]any{
			"user_id": "erin",
			"email":   "not-an-email",
			"role":    "enthusiast",
		}, nil)
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
	})
}

func (s *HandlersSuite) TestLogin() {
	s.Require().NoError(s.directory.Register(context.Background(), &auth.User{
		ID: "alice", Email: "alice@example", Role: verification.RoleEnthusiast,
	}))

	s.Run("unverified user is forbidden", func() {
		rec := s.do(http.MethodPost, "/auth/login", map[string]any{"user_id": "alice"}, nil)
		s.Require().Equal(http.StatusForbidden, rec.Code)

		var body errorResponse
		s.decodeBody(rec, &body)
		s.Equal(auth.ReasonAgeRequired, body.Message)
	})

	s.Run("verified user receives a token", func() {
		s.submitIdentity("alice", 30)

		rec := s.do(http.MethodPost, "/auth/login", map[string]any{"user_id": "alice"}, nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var result auth.LoginResult
		s.decodeBody(rec, &result)
		s.Equal("alice", result.UserID)
		s.NotEmpty(result.Token)

		claims, err := s.tokens.Validate(result.Token)
		s.Require().NoError(err)
		s.Equal("alice", claims.UserID)
	})

	s.Run("unknown user is unauthorized", func() {
		rec := s.do(http.MethodPost, "/auth/login", map[string]any{"user_id": "ghost"}, nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *HandlersSuite) TestMessages() {
	send := func(content string) *httptest.ResponseRecorder {
		return s.do(http.MethodPost, "/messages", map[string]any{
			"sender_id":    "alice",
			"recipient_id": "bob",
			"kind":         "text",
			"content":      content,
		}, nil)
	}

	s.Run("benign message is created", func() {
		rec := send("Looking forward to the session on Tuesday, bring a towel and a water bottle please.")
		s.Require().Equal(http.StatusCreated, rec.Code)

		var result messaging.SendResult
		s.decodeBody(rec, &result)
		s.NotEmpty(result.MessageID)
		s.False(result.Flagged)
	})

	s.Run("grooming message is flagged but still delivered", func() {
		rec := send("you can trust me, this stays between us")
		s.Require().Equal(http.StatusCreated, rec.Code)

		var result messaging.SendResult
		s.decodeBody(rec, &result)
		s.True(result.Flagged)
	})

	s.Run("limit exhaustion returns 429", func() {
		send("One more inside the window to use up the remaining allowance for this minute.")
		rec := send("This one should be over the limit now and get turned away at the door.")
		s.Equal(http.StatusTooManyRequests, rec.Code)
	})

	s.Run("unknown kind is a validation error", func() {
		rec := s.do(http.MethodPost, "/messages", map[string]any{
			"sender_id":    "alice",
			"recipient_id": "bob",
			"kind":         "voice",
			"content":      "hello",
		}, nil)
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
	})
}

func (s *HandlersSuite) TestDeleteMessage() {
	rec := s.do(http.MethodPost, "/messages", map[string]any{
		"sender_id":    "alice",
		"recipient_id": "bob",
		"kind":         "text",
		"content":      "Remove this shortly after sending, it was meant for a different thread.",
	}, nil)
	s.Require().Equal(http.StatusCreated, rec.Code)
	var result messaging.SendResult
	s.decodeBody(rec, &result)

	path := fmt.Sprintf("/messages/%s", result.MessageID)

	s.Run("missing token", func() {
		rec := s.do(http.MethodDelete, path, nil, nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("sender token deletes", func() {
		token, _, err := s.tokens.Generate("alice", "enthusiast", time.Now())
		s.Require().NoError(err)

		header := http.Header{}
		header.Set("Authorization", "Bearer "+token)
		rec := s.do(http.MethodDelete, path, nil, header)
		s.Equal(http.StatusNoContent, rec.Code)
	})

	s.Run("non-sender token is forbidden", func() {
		rec2 := s.do(http.MethodPost, "/messages", map[string]any{
			"sender_id":    "alice",
			"recipient_id": "bob",
			"kind":         "text",
			"content":      "Another short note that someone else will try and fail to delete.",
		}, nil)
		s.Require().Equal(http.StatusCreated, rec2.Code)
		var second messaging.SendResult
		s.decodeBody(rec2, &second)

		token, _, err := s.tokens.Generate("bob", "trainer", time.Now())
		s.Require().NoError(err)

		header := http.Header{}
		header.Set("Authorization", "Bearer "+token)
		rec := s.do(http.MethodDelete, "/messages/"+second.MessageID, nil, header)
		s.Equal(http.StatusForbidden, rec.Code)
	})
}

func (s *HandlersSuite) TestProvisionKeys() {
	rec := s.do(http.MethodPost, "/keys", map[string]any{"user_id": "dana"}, nil)
	s.Require().Equal(http.StatusCreated, rec.Code)

	var material messaging.KeyMaterial
	s.decodeBody(rec, &material)
	s.Equal("dana", material.UserID)
	s.NotEmpty(material.PublicPEM)
	s.NotEmpty(material.SealedPrivatePEM)

	s.Run("provisioned user can receive messages", func() {
		rec := s.do(http.MethodPost, "/messages", map[string]any{
			"sender_id":    "alice",
			"recipient_id": "dana",
			"kind":         "text",
			"content":      "Welcome aboard, your inbox is ready whenever you want to say hello.",
		}, nil)
		s.Equal(http.StatusCreated, rec.Code)
	})

	s.Run("missing user id", func() {
		rec := s.do(http.MethodPost, "/keys", map[string]any{}, nil)
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
	})
}

func (s *HandlersSuite) TestHealthz() {
	rec := s.do(http.MethodGet, "/healthz", nil, nil)
	s.Equal(http.StatusOK, rec.Code)
}
