package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"aegis/internal/ratelimit/models"
	store "aegis/internal/ratelimit/store/memory"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
)

type RateLimitServiceSuite struct {
	suite.Suite
	service *Service
}

func TestRateLimitServiceSuite(t *testing.T) {
	suite.Run(t, new(RateLimitServiceSuite))
}

func (s *RateLimitServiceSuite) SetupTest() {
	var err error
	s.service, err = New(store.New(), []models.Policy{
		{Name: models.PolicyLogin, Limit: 5, Window: 15 * time.Minute},
		{Name: models.PolicyMessages, Limit: 3, Window: time.Minute},
	})
	s.Require().NoError(err)
}

func (s *RateLimitServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, nil)
		s.Error(err)
	})

	s.Run("non-positive policy limit returns error", func() {
		_, err := New(store.New(), []models.Policy{{Name: "bad", Limit: 0, Window: time.Minute}})
		s.Error(err)
	})
}

func (s *RateLimitServiceSuite) TestAdmit() {
	ctx := context.Background()

	s.Run("five login attempts pass, sixth fails, window expiry recovers", func() {
		base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			ctx := requestcontext.WithTime(context.Background(), base.Add(time.Duration(i)*time.Second))
			result, err := s.service.Admit(ctx, models.PolicyLogin, "alice@example")
			s.Require().NoError(err)
			s.True(result.Allowed)
		}

		sixth := requestcontext.WithTime(context.Background(), base.Add(time.Minute))
		result, err := s.service.Admit(sixth, models.PolicyLogin, "alice@example")
		s.Require().NoError(err)
		s.False(result.Allowed)

		afterWindow := requestcontext.WithTime(context.Background(), base.Add(16*time.Minute))
		result, err = s.service.Admit(afterWindow, models.PolicyLogin, "alice@example")
		s.Require().NoError(err)
		s.True(result.Allowed)
	})

	s.Run("policies are independent per identifier", func() {
		for i := 0; i < 3; i++ {
			result, err := s.service.Admit(ctx, models.PolicyMessages, "user-1")
			s.Require().NoError(err)
			s.True(result.Allowed)
		}
		denied, err := s.service.Admit(ctx, models.PolicyMessages, "user-1")
		s.Require().NoError(err)
		s.False(denied.Allowed)

		// Same identifier under another policy is untouched.
		result, err := s.service.Admit(ctx, models.PolicyLogin, "user-1")
		s.Require().NoError(err)
		s.True(result.Allowed)
	})

	s.Run("unknown policy is an internal error", func() {
		_, err := s.service.Admit(ctx, "nope", "user-1")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *RateLimitServiceSuite) TestAdmitCustom() {
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		result, err := s.service.AdmitCustom(ctx, "203.0.113.7", 2, time.Hour)
		s.Require().NoError(err)
		s.True(result.Allowed)
	}
	result, err := s.service.AdmitCustom(ctx, "203.0.113.7", 2, time.Hour)
	s.Require().NoError(err)
	s.False(result.Allowed)
}

func (s *RateLimitServiceSuite) TestReset() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.service.Admit(ctx, models.PolicyMessages, "user-2")
		s.Require().NoError(err)
	}
	s.Require().NoError(s.service.Reset(ctx, models.PolicyMessages, "user-2"))

	result, err := s.service.Admit(ctx, models.PolicyMessages, "user-2")
	s.Require().NoError(err)
	s.True(result.Allowed)
}
