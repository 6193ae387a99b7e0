package messaging_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"aegis/internal/audit"
	auditservice "aegis/internal/audit/service"
	auditmemory "aegis/internal/audit/store/memory"
	"aegis/internal/crypto/envelope"
	"aegis/internal/messaging"
	"aegis/internal/messaging/store/memory"
	"aegis/internal/ratelimit/models"
	ratelimitservice "aegis/internal/ratelimit/service"
	ratelimitmemory "aegis/internal/ratelimit/store/memory"
	"aegis/internal/risk"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
)

type MessagingServiceSuite struct {
	suite.Suite
	store      *memory.InMemoryStore
	keys       *messaging.InMemoryKeyRegistry
	auditStore *auditmemory.InMemoryStore
	pool       *envelope.Pool
	service    *messaging.Service
	recipient  *envelope.KeyPair
	now        time.Time
	ctx        context.Context
}

func TestMessagingServiceSuite(t *testing.T) {
	suite.Run(t, new(MessagingServiceSuite))
}

func (s *MessagingServiceSuite) SetupSuite() {
	var err error
	s.recipient, err = envelope.GenerateKeyPair()
	s.Require().NoError(err)
}

func (s *MessagingServiceSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.store = memory.New()
	s.keys = messaging.NewInMemoryKeyRegistry()
	pubPEM, err := s.recipient.PublicPEM()
	s.Require().NoError(err)
	s.Require().NoError(s.keys.Register(s.ctx, "recipient", pubPEM))

	s.auditStore = auditmemory.New()
	auditor, err := auditservice.New(s.auditStore, auditservice.WithRetry(0, time.Millisecond))
	s.Require().NoError(err)

	limiter, err := ratelimitservice.New(ratelimitmemory.New(), []models.Policy{
		{Name: models.PolicyMessages, Limit: 3, Window: time.Minute},
	})
	s.Require().NoError(err)

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
		SuspiciousKeywords: []string{"webcam", "gift card", "cash"},
		GroomingPhrases:    []string{"you can trust me", "are you alone"},
		PressureWords:      []string{"hurry"},
	})

	s.pool = envelope.NewPool(2)
	s.service, err = messaging.New(s.store, s.keys, s.pool, scorer,
		messaging.WithLimiter(limiter), messaging.WithAuditor(auditor))
	s.Require().NoError(err)
}

func (s *MessagingServiceSuite) TestSendBenign() {
	const plaintext = "Looking forward to the session on Tuesday, bring a towel and a water bottle please."

	result, err := s.service.Send(s.ctx, "sender", "recipient", messaging.KindText, plaintext)
	s.Require().NoError(err)
	s.False(result.Flagged)
	s.Zero(result.Score)

	msg, err := s.store.Get(s.ctx, result.MessageID)
	s.Require().NoError(err)
	s.NotEmpty(msg.Envelope)
	s.NotContains(msg.Envelope, plaintext)
	s.Equal(s.now, msg.CreatedAt)

	privPEM, err := s.recipient.PrivatePEM()
	s.Require().NoError(err)
	recovered, err := s.pool.Decrypt(s.ctx, msg.Envelope, privPEM)
	s.Require().NoError(err)
	s.Equal(plaintext, string(recovered))

	events, err := s.auditStore.ListBySubject(s.ctx, "sender")
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *MessagingServiceSuite) TestSendGroomingEscalates() {
	result, err := s.service.Send(s.ctx, "sender", "recipient", messaging.KindText,
		"you can trust me, this stays between us")
	s.Require().NoError(err)
	s.True(result.Flagged)
	s.GreaterOrEqual(result.Score, 25)

	events, err := s.auditStore.ListBySubject(s.ctx, "sender")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.EventGroomingDetected, events[0].Type)
	s.Equal(audit.SeverityHigh, events[0].Severity)

	tasks, err := s.auditStore.ListOpenTasks(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(tasks, 1)
	s.Equal(audit.PriorityHigh, tasks[0].Priority)
}

func (s *MessagingServiceSuite) TestSendKeywordsOnlyWarns() {
	result, err := s.service.Send(s.ctx, "sender", "recipient", messaging.KindText,
		"send the webcam footage and a gift card plus some cash before the delivery window closes")
	s.Require().NoError(err)
	s.True(result.Flagged)

	events, err := s.auditStore.ListBySubject(s.ctx, "sender")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.EventSuspiciousMessage, events[0].Type)
	s.Equal(audit.SeverityWarning, events[0].Severity)

	tasks, err := s.auditStore.ListOpenTasks(s.ctx)
	s.Require().NoError(err)
	s.Empty(tasks)
}

func (s *MessagingServiceSuite) TestSendThrottled() {
	const plaintext = "Checking in about tomorrow's schedule, does the early slot still work for you?"
	for i := 0; i < 3; i++ {
		_, err := s.service.Send(s.ctx, "sender", "recipient", messaging.KindText, plaintext)
		s.Require().NoError(err)
	}

	_, err := s.service.Send(s.ctx, "sender", "recipient", messaging.KindText, plaintext)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))

	messages, err := s.store.ListConversation(s.ctx, "sender", "recipient")
	s.Require().NoError(err)
	s.Len(messages, 3)

	events, err := s.auditStore.ListBySubject(s.ctx, "sender")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.EventRateLimitExceeded, events[0].Type)
	s.Equal(audit.SeverityInfo, events[0].Severity)
}

func (s *MessagingServiceSuite) TestSendValidation() {
	cases := []struct {
		name      string
		sender    string
		recipient string
		kind      messaging.Kind
		text      string
	}{
		{"missing sender", "", "recipient", messaging.KindText, "hello there my friend"},
		{"missing recipient", "sender", "", messaging.KindText, "hello there my friend"},
		{"unknown kind", "sender", "recipient", "voice", "hello there my friend"},
		{"blank content", "sender", "recipient", messaging.KindText, "   "},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.Send(s.ctx, tc.sender, tc.recipient, tc.kind, tc.text)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func (s *MessagingServiceSuite) TestSendUnknownRecipientKey() {
	_, err := s.service.Send(s.ctx, "sender", "stranger", messaging.KindText, "hello there my friend")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *MessagingServiceSuite) TestDelete() {
	result, err := s.service.Send(s.ctx, "sender", "recipient", messaging.KindText,
		"Delete this one after reading, it has the old gate code in it somewhere.")
	s.Require().NoError(err)

	s.Run("only the sender may delete", func() {
		err := s.service.Delete(s.ctx, result.MessageID, "recipient")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("sender delete is soft", func() {
		s.Require().NoError(s.service.Delete(s.ctx, result.MessageID, "sender"))

		msg, err := s.store.Get(s.ctx, result.MessageID)
		s.Require().NoError(err)
		s.True(msg.Deleted())
		s.Empty(msg.Envelope)
		s.False(msg.Flagged)

		conversation, err := s.service.Conversation(s.ctx, "sender", "recipient")
		s.Require().NoError(err)
		s.Empty(conversation)
	})

	s.Run("double delete conflicts", func() {
		err := s.service.Delete(s.ctx, result.MessageID, "sender")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown message", func() {
		err := s.service.Delete(s.ctx, "missing", "sender")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *MessagingServiceSuite) TestSendConcurrent() {
	const plaintext = "Same message from many goroutines to exercise the pool and the window store together."
	var senders []string
	for i := 0; i < 8; i++ {
		senders = append(senders, "sender-"+strings.Repeat("x", i+1))
	}

	errs := make(chan error, len(senders))
	for _, sender := range senders {
		go func(sender string) {
			_, err := s.service.Send(s.ctx, sender, "recipient", messaging.KindText, plaintext)
			errs <- err
		}(sender)
	}
	for range senders {
		s.NoError(<-errs)
	}
}
