package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/storefront/internal/flows"
	"github.com/MrEthical07/storefront/internal/rate"
	"github.com/MrEthical07/storefront/internal/transport"
	"github.com/MrEthical07/storefront/internal/validate"
	"github.com/MrEthical07/storefront/notify"
	"github.com/MrEthical07/storefront/session"
	"go.uber.org/zap"
)

const (
	msgAuthFailed = "Failed to process request. Please try again."
	msgOTPFailed  = "Failed to send OTP. Please try again."
	msgOTPSent    = "OTP sent to your phone number"
)

// authPayload is the data of a successful login or OTP verification.
type authPayload struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	Role         string `json:"role"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PhoneNo      string `json:"phoneNo"`
}

func (p authPayload) flow() flows.LoginPayload {
	return flows.LoginPayload{
		AccessToken:  p.Token,
		RefreshToken: p.RefreshToken,
		UserID:       p.UserID,
		Role:         p.Role,
		Name:         p.Name,
		Email:        p.Email,
		Phone:        p.PhoneNo,
	}
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/user/login", body, "Email",
		func() error {
			if err := checkEmail(email, false); err != nil {
				return err
			}
			return checkPassword(password)
		},
		"Logged in successfully", MetricLoginSuccess)
}

// RequestLoginOTP asks the API to text a login OTP to phone, a 10-digit
// number without country code. Requests for the same phone are limited to
// one per OTP.ResendCooldown.
func (c *Client) RequestLoginOTP(ctx context.Context, phone string) error {
	if err := checkPhone(phone); err != nil {
		return c.fail(ctx, err, "")
	}
	return c.requestOTP(ctx, "login:"+phone, "/user/login/otp/request",
		map[string]string{"phoneNo": c.formatPhone(phone)})
}

// VerifyLoginOTP completes a phone login.
func (c *Client) VerifyLoginOTP(ctx context.Context, phone, otp string) (User, error) {
	body := map[string]string{"phoneNo": c.formatPhone(phone), "otp": otp}
	return c.authenticate(ctx, "/user/login/otp/verify", body, "Phone number",
		func() error {
			if err := checkPhone(phone); err != nil {
				return err
			}
			return checkOTP(otp)
		},
		"Logged in successfully", MetricLoginSuccess)
}

// RequestRegistrationOTP validates the sign-up form and sends an OTP to the
// phone on it.
func (c *Client) RequestRegistrationOTP(ctx context.Context, r Registration) error {
	if err := checkRegistration(r); err != nil {
		return c.fail(ctx, err, "")
	}
	return c.requestOTP(ctx, "register:"+r.Phone, "/user/register/otp/request", map[string]string{
		"name":     strings.TrimSpace(r.Name),
		"email":    r.Email,
		"phoneNo":  c.formatPhone(r.Phone),
		"password": r.Password,
	})
}

// VerifyRegistrationOTP creates the account and signs in.
func (c *Client) VerifyRegistrationOTP(ctx context.Context, phone, otp string) (User, error) {
	body := map[string]string{"phoneNo": c.formatPhone(phone), "otp": otp}
	return c.authenticate(ctx, "/user/register/otp/verify", body, "Phone number",
		func() error {
			if err := checkPhone(phone); err != nil {
				return err
			}
			return checkOTP(otp)
		},
		"Account created successfully!", MetricRegistrationSuccess)
}

// Logout ends the session. It is safe to call without one.
func (c *Client) Logout(ctx context.Context) {
	wasActive := c.session.State() != session.StateAnonymous
	c.session.Logout(ctx)
	if wasActive {
		c.metrics.Inc(MetricLogout)
	}
	c.succeed(ctx, "Logged out successfully")
}

// UserDetails fetches the signed-in user's profile.
func (c *Client) UserDetails(ctx context.Context) (User, error) {
	if err := c.requireSession(ctx, "Please log in to view your profile"); err != nil {
		return User{}, err
	}
	id, ok := c.session.Identity(ctx)
	if !ok {
		return User{}, c.fail(ctx, ErrNotLoggedIn, "")
	}

	var u User
	const fallback = "Failed to load user details"
	if _, err := c.call(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/user/details/" + id.UserID,
	}, fallback, &u); err != nil {
		return User{}, c.fail(ctx, err, fallback)
	}
	if u.UserID == "" {
		u.UserID = id.UserID
	}
	return u, nil
}

func (c *Client) authenticate(ctx context.Context, path string, body any, subject string, check func() error, successMsg string, successMetric MetricID) (User, error) {
	res := flows.RunLogin(ctx, flows.LoginDeps{
		Validate: check,
		Call: func(ctx context.Context) (flows.LoginPayload, error) {
			var p authPayload
			_, err := c.call(ctx, transport.Request{
				Method:   http.MethodPost,
				Path:     path,
				Body:     body,
				SkipAuth: true,
			}, msgAuthFailed, &p)
			return p.flow(), err
		},
		IsExpired: c.session.IsExpired,
		Establish: func(ctx context.Context, p flows.LoginPayload) error {
			return c.session.Establish(ctx,
				session.Pair{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken},
				session.Identity{UserID: p.UserID, Role: p.Role, Name: p.Name, Email: p.Email, Phone: p.Phone},
			)
		},
	})

	switch res.Failure {
	case flows.LoginFailureNone:
		c.metrics.Inc(successMetric)
		c.succeed(ctx, successMsg)
		p := res.Payload
		return User{UserID: p.UserID, Role: p.Role, Name: p.Name, Email: p.Email, Phone: p.Phone}, nil
	case flows.LoginFailureValidation:
		return User{}, c.fail(ctx, res.Err, "")
	}

	c.metrics.Inc(MetricLoginFailure)
	c.logger.Info("authentication failed", zap.String("path", path), zap.Error(res.Err))
	if transport.StatusCode(res.Err) == http.StatusNotFound {
		c.notifier.Notify(ctx, notify.Error(subject+" not registered. Please sign up first."))
		return User{}, fmt.Errorf("%w: %w", ErrNotRegistered, res.Err)
	}
	return User{}, c.failCredentials(ctx, res.Err, msgAuthFailed)
}

func (c *Client) requestOTP(ctx context.Context, key, path string, body any) error {
	if c.cooldown != nil {
		wait, err := c.cooldown.Acquire(ctx, key)
		if errors.Is(err, rate.ErrRateLimited) {
			c.metrics.Inc(MetricOTPRateLimited)
			secs := int((wait + time.Second - 1) / time.Second)
			c.notifier.Notify(ctx, notify.Warning(fmt.Sprintf("Please wait %ds before requesting another OTP", secs)))
			return fmt.Errorf("%w: retry in %s", ErrOTPCooldown, wait)
		}
		if err != nil {
			// Cooldown backend failures are logged and the request proceeds.
			c.logger.Warn("otp cooldown unavailable", zap.Error(err))
		}
	}

	_, err := c.call(ctx, transport.Request{
		Method:   http.MethodPost,
		Path:     path,
		Body:     body,
		SkipAuth: true,
	}, msgOTPFailed, nil)
	if err != nil {
		if c.cooldown != nil {
			if rerr := c.cooldown.Release(ctx, key); rerr != nil {
				c.logger.Warn("otp cooldown release failed", zap.Error(rerr))
			}
		}
		if transport.StatusCode(err) == http.StatusNotFound {
			c.notifier.Notify(ctx, notify.Error("Phone number not registered. Please sign up first."))
			return fmt.Errorf("%w: %w", ErrNotRegistered, err)
		}
		return c.failCredentials(ctx, err, msgOTPFailed)
	}

	c.metrics.Inc(MetricOTPRequested)
	c.notifier.Notify(ctx, notify.Info(msgOTPSent))
	return nil
}

func (c *Client) formatPhone(phone string) string {
	if len(phone) == 10 {
		return c.cfg.OTP.CountryCode + phone
	}
	return phone
}

/*
====================================
INPUT CHECKS
====================================
*/

func checkPhone(phone string) error {
	if phone == "" {
		return validate.Fail("phoneNo", "Phone number is required")
	}
	if !validate.Digits(phone, 10) {
		return validate.Fail("phoneNo", "Please enter a valid 10-digit phone number")
	}
	return nil
}

func checkOTP(otp string) error {
	if otp == "" {
		return validate.Fail("otp", "OTP is required")
	}
	if !validate.Digits(otp, 6) {
		return validate.Fail("otp", "Please enter a valid 6-digit OTP")
	}
	return nil
}

func checkPassword(password string) error {
	if password == "" {
		return validate.Fail("password", "Password is required")
	}
	if len(password) < 6 {
		return validate.Fail("password", "Password must be at least 6 characters long")
	}
	return nil
}

// checkEmail validates an address. Registration accepts only .com and .in
// domains.
func checkEmail(email string, registering bool) error {
	if email == "" {
		return validate.Fail("email", "Email address is required")
	}
	if !validate.Check(email, "email") {
		if registering {
			return validate.Fail("email", "Please enter a valid email address (only .com or .in domains)")
		}
		return validate.Fail("email", "Please enter a valid email address")
	}
	if registering {
		lower := strings.ToLower(email)
		if !strings.HasSuffix(lower, ".com") && !strings.HasSuffix(lower, ".in") {
			return validate.Fail("email", "Please enter a valid email address (only .com or .in domains)")
		}
	}
	return nil
}

// checkRegistration checks the sign-up form in field order.
func checkRegistration(r Registration) error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return validate.Fail("name", "Full name is required")
	}
	if len([]rune(name)) < 2 {
		return validate.Fail("name", "Name must be at least 2 characters long")
	}
	if err := checkEmail(r.Email, true); err != nil {
		return err
	}
	if err := checkPassword(r.Password); err != nil {
		return err
	}
	return checkPhone(r.Phone)
}
