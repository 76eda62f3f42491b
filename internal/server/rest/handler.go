package rest

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/dmitrijs2005/windbreaker/internal/common"
	"github.com/dmitrijs2005/windbreaker/internal/features"
	"github.com/dmitrijs2005/windbreaker/internal/server/services"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type forgotPasswordRequest struct {
	Email       string `json:"email" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type delayRequest struct {
	Airline     string `json:"airline" binding:"required"`
	Origin      string `json:"origin" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	Date        string `json:"date" binding:"required"`
	Time        string `json:"time" binding:"required"`
}

type priceRequest struct {
	Airline      string   `json:"airline" binding:"required"`
	Origin       string   `json:"origin"`
	Destination  string   `json:"destination" binding:"required"`
	DurationMins *float64 `json:"duration_mins" binding:"required"`
}

func bindError(err error) error {
	return fmt.Errorf("%w: %v", common.ErrValidation, err)
}

func (s *HTTPServer) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"system":  s.info.ProjectName,
		"version": s.info.Version,
	})
}

func (s *HTTPServer) health(c *gin.Context) {
	state := func(ok bool) string {
		if ok {
			return "loaded"
		}
		return "unavailable"
	}

	status := "ok"
	if !s.delay.Available() || !s.price.Available() {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      status,
		"delay_model": state(s.delay.Available()),
		"price_model": state(s.price.Available()),
	})
}

func (s *HTTPServer) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, bindError(err))
		return
	}

	if _, err := s.users.Register(c.Request.Context(), req.Name, req.Email, req.Password, c.ClientIP()); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "registration successful"})
}

// login takes OAuth2 password-flow form fields; username carries the email.
func (s *HTTPServer) login(c *gin.Context) {
	email := c.PostForm("username")
	password := c.PostForm("password")
	if email == "" || password == "" {
		s.writeError(c, fmt.Errorf("%w: username and password are required", common.ErrValidation))
		return
	}

	session, err := s.users.Login(c.Request.Context(), email, password, c.ClientIP())
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": session.AccessToken,
		"token_type":   session.TokenType,
		"user_name":    session.UserName,
	})
}

func (s *HTTPServer) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, bindError(err))
		return
	}

	if err := s.users.ResetPassword(c.Request.Context(), req.Email, req.NewPassword, c.ClientIP()); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

func (s *HTTPServer) me(c *gin.Context) {
	user, ok := UserFromContext(c.Request.Context())
	if !ok {
		s.writeError(c, common.ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": user.Email, "name": user.Name})
}

func (s *HTTPServer) predictDelay(c *gin.Context) {
	var req delayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, bindError(err))
		return
	}

	pred, err := s.delay.Predict(c.Request.Context(), features.DelayInput{
		Airline:     req.Airline,
		Origin:      req.Origin,
		Destination: req.Destination,
		Date:        req.Date,
		Time:        req.Time,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"prediction":  pred.Label,
		"probability": pred.Probability,
		"risk_score":  pred.RiskScore,
	})
}

func (s *HTTPServer) predictPrice(c *gin.Context) {
	var req priceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, bindError(err))
		return
	}

	price, err := s.price.Predict(c.Request.Context(), features.PriceInput{
		Airline:      req.Airline,
		Origin:       req.Origin,
		Destination:  req.Destination,
		DurationMins: *req.DurationMins,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		s.writeError(c, common.ErrInference)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "estimated_price": price})
}

func (s *HTTPServer) delayOptions(c *gin.Context) {
	opts, err := s.delay.Options()
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeOptions(c, opts)
}

func (s *HTTPServer) priceOptions(c *gin.Context) {
	opts, err := s.price.Options()
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeOptions(c, opts)
}

// allOptions merges whichever families are up; it fails only when both are
// down.
func (s *HTTPServer) allOptions(c *gin.Context) {
	var sets []services.Options
	var lastErr error

	for _, get := range []func() (services.Options, error){s.delay.Options, s.price.Options} {
		opts, err := get()
		if err != nil {
			if !errors.Is(err, common.ErrModelUnavailable) {
				s.writeError(c, err)
				return
			}
			lastErr = err
			continue
		}
		sets = append(sets, opts)
	}

	if len(sets) == 0 {
		s.writeError(c, lastErr)
		return
	}
	writeOptions(c, services.MergeOptions(sets...))
}

func writeOptions(c *gin.Context, opts services.Options) {
	c.JSON(http.StatusOK, gin.H{"airlines": opts.Airlines, "cities": opts.Cities})
}
