// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/redis/go-redis/v9"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/auth/memory"
	"github.com/holomush/holoauth/internal/auth/redisstore"
	"github.com/holomush/holoauth/internal/web"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

var cheapHasher = auth.NewArgon2idHasherWithParams(auth.Argon2Params{
	Time: 1, Memory: 64, Threads: 1, SaltLen: 16, KeyLen: 32,
})

type deliveredCode struct {
	email auth.Email
	code  auth.TwoFACode
}

// testApp is the API on a real listener, backed by real stores.
type testApp struct {
	server *httptest.Server
	svc    *auth.Service
	banned auth.BannedTokenStore
	codes  chan deliveredCode
}

type response struct {
	status int
	body   map[string]any
	cookie *http.Cookie
	header http.Header
}

func (a *testApp) post(path string, body any, cookie *http.Cookie) response {
	GinkgoHelper()
	var payload io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, a.server.URL+path, payload)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}

	resp, err := a.server.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()

	out := response{status: resp.StatusCode, header: resp.Header}
	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	if len(raw) > 0 {
		Expect(json.Unmarshal(raw, &out.body)).To(Succeed())
	}
	for _, c := range resp.Cookies() {
		if c.Name == web.DefaultCookieName {
			out.cookie = c
		}
	}
	return out
}

func (a *testApp) nextCode() deliveredCode {
	GinkgoHelper()
	var got deliveredCode
	Eventually(a.codes).WithTimeout(2 * time.Second).Should(Receive(&got))
	return got
}

type backend struct {
	codes  func() auth.TwoFACodeStore
	banned func() auth.BannedTokenStore
}

func newTestApp(b backend) *testApp {
	GinkgoHelper()
	app := &testApp{codes: make(chan deliveredCode, 8)}
	app.banned = b.banned()

	tokens, err := auth.NewTokenService(testSecret, 10*time.Minute, app.banned)
	Expect(err).NotTo(HaveOccurred())

	svc, err := auth.NewService(auth.ServiceConfig{
		Users:  memory.NewUserStore(cheapHasher),
		Codes:  b.codes(),
		Banned: app.banned,
		Hasher: cheapHasher,
		Tokens: tokens,
		Notifier: auth.NotifierFunc(func(_ context.Context, email auth.Email, code auth.TwoFACode) error {
			app.codes <- deliveredCode{email: email, code: code}
			return nil
		}),
		Logger: slog.New(slog.NewTextHandler(GinkgoWriter, nil)),
	})
	Expect(err).NotTo(HaveOccurred())
	app.svc = svc

	api, err := web.NewAPI(web.Config{
		Service:        svc,
		Cookie:         web.CookieConfig{MaxAge: tokens.TTL()},
		AllowedOrigins: []string{"http://localhost:*"},
		Logger:         slog.New(slog.NewTextHandler(GinkgoWriter, nil)),
	})
	Expect(err).NotTo(HaveOccurred())

	app.server = httptest.NewServer(api.Handler())
	DeferCleanup(func() {
		app.server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(svc.Wait(ctx)).To(Succeed())
	})
	return app
}

func memoryBackend() backend {
	return backend{
		codes:  func() auth.TwoFACodeStore { return memory.NewTwoFACodeStore() },
		banned: func() auth.BannedTokenStore { return memory.NewBannedTokenStore() },
	}
}

func redisBackend() backend {
	var client *redis.Client
	connect := func() *redis.Client {
		if client == nil {
			mr := miniredis.RunT(GinkgoT())
			client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
			DeferCleanup(client.Close)
		}
		return client
	}
	return backend{
		codes:  func() auth.TwoFACodeStore { return redisstore.NewTwoFACodeStore(connect(), time.Minute) },
		banned: func() auth.BannedTokenStore { return redisstore.NewBannedTokenStore(connect(), 10*time.Minute) },
	}
}

var _ = Describe("Auth API", func() {
	for name, b := range map[string]func() backend{
		"memory stores": memoryBackend,
		"redis stores":  redisBackend,
	} {
		Context("with "+name, func() {
			var app *testApp

			BeforeEach(func() {
				app = newTestApp(b())
			})

			signup := func(email string, requires2FA bool) {
				GinkgoHelper()
				resp := app.post("/signup", map[string]any{
					"email": email, "password": "password123", "requires2FA": requires2FA,
				}, nil)
				Expect(resp.status).To(Equal(http.StatusCreated))
			}

			login := func(email string) response {
				GinkgoHelper()
				return app.post("/login", map[string]any{"email": email, "password": "password123"}, nil)
			}

			Describe("signup", func() {
				It("creates a user once", func() {
					signup("a@b.com", false)

					resp := app.post("/signup", map[string]any{
						"email": "a@b.com", "password": "password123", "requires2FA": false,
					}, nil)
					Expect(resp.status).To(Equal(http.StatusConflict))
					Expect(resp.body).To(HaveKeyWithValue("error", "User already exists"))
				})

				It("treats email case-insensitively", func() {
					signup("User@Example.com", false)
					Expect(login("user@example.com").status).To(Equal(http.StatusOK))
				})

				DescribeTable("rejects invalid credentials",
					func(email, password string) {
						resp := app.post("/signup", map[string]any{
							"email": email, "password": password, "requires2FA": true,
						}, nil)
						Expect(resp.status).To(Equal(http.StatusBadRequest))
						Expect(resp.body).To(HaveKeyWithValue("error", "Invalid credentials"))
					},
					Entry("short password", "a@b.com", "p23"),
					Entry("empty email", "", "password123"),
					Entry("email without at", "random_email", "password123"),
				)
			})

			Describe("login without 2FA", func() {
				It("issues a usable session cookie", func() {
					signup("a@b.com", false)

					resp := login("a@b.com")
					Expect(resp.status).To(Equal(http.StatusOK))
					Expect(resp.cookie).NotTo(BeNil())
					Expect(resp.cookie.Value).NotTo(BeEmpty())
					Expect(resp.cookie.HttpOnly).To(BeTrue())
					Expect(resp.cookie.Secure).To(BeTrue())

					verify := app.post("/verify-token", map[string]any{"token": resp.cookie.Value}, nil)
					Expect(verify.status).To(Equal(http.StatusOK))
				})

				It("rejects a wrong password and an unknown user alike", func() {
					signup("a@b.com", false)

					wrong := app.post("/login", map[string]any{"email": "a@b.com", "password": "password1234"}, nil)
					unknown := app.post("/login", map[string]any{"email": "x@b.com", "password": "password123"}, nil)

					Expect(wrong.status).To(Equal(http.StatusUnauthorized))
					Expect(unknown.status).To(Equal(http.StatusUnauthorized))
					Expect(wrong.body).To(Equal(unknown.body))
				})
			})

			Describe("login with 2FA", func() {
				It("delivers a code that completes login exactly once", func() {
					signup("a@b.com", true)

					resp := login("a@b.com")
					Expect(resp.status).To(Equal(http.StatusPartialContent))
					Expect(resp.cookie).To(BeNil())
					Expect(resp.body).To(HaveKeyWithValue("message", "2FA required"))
					attemptID, ok := resp.body["loginAttemptId"].(string)
					Expect(ok).To(BeTrue())

					delivered := app.nextCode()
					Expect(delivered.email.String()).To(Equal("a@b.com"))
					Expect(resp.body).NotTo(ContainElement(delivered.code.String()))

					body := map[string]any{
						"email": "a@b.com", "loginAttemptId": attemptID, "2FACode": delivered.code.String(),
					}
					verified := app.post("/verify-2fa", body, nil)
					Expect(verified.status).To(Equal(http.StatusOK))
					Expect(verified.cookie).NotTo(BeNil())

					replay := app.post("/verify-2fa", body, nil)
					Expect(replay.status).To(Equal(http.StatusUnauthorized))
				})

				It("keeps the challenge after a wrong code", func() {
					signup("a@b.com", true)
					resp := login("a@b.com")
					attemptID, _ := resp.body["loginAttemptId"].(string)
					delivered := app.nextCode()

					wrongCode := "000000"
					if delivered.code.String() == wrongCode {
						wrongCode = "111111"
					}
					wrong := app.post("/verify-2fa", map[string]any{
						"email": "a@b.com", "loginAttemptId": attemptID, "2FACode": wrongCode,
					}, nil)
					Expect(wrong.status).To(Equal(http.StatusUnauthorized))
					Expect(wrong.body).To(HaveKeyWithValue("error", "Incorrect credentials"))

					right := app.post("/verify-2fa", map[string]any{
						"email": "a@b.com", "loginAttemptId": attemptID, "2FACode": delivered.code.String(),
					}, nil)
					Expect(right.status).To(Equal(http.StatusOK))
				})

				It("invalidates the first challenge when logging in again", func() {
					signup("a@b.com", true)
					first := login("a@b.com")
					firstCode := app.nextCode()
					second := login("a@b.com")
					app.nextCode()

					Expect(second.body["loginAttemptId"]).NotTo(Equal(first.body["loginAttemptId"]))
					stale := app.post("/verify-2fa", map[string]any{
						"email": "a@b.com", "loginAttemptId": first.body["loginAttemptId"], "2FACode": firstCode.code.String(),
					}, nil)
					Expect(stale.status).To(Equal(http.StatusUnauthorized))
				})

				It("rejects an invalid email with 400", func() {
					resp := app.post("/verify-2fa", map[string]any{
						"email": "nope", "loginAttemptId": auth.NewLoginAttemptID().String(), "2FACode": "123456",
					}, nil)
					Expect(resp.status).To(Equal(http.StatusBadRequest))
				})
			})

			Describe("logout", func() {
				It("bans the token and clears the cookie", func() {
					signup("a@b.com", false)
					session := login("a@b.com").cookie
					Expect(session).NotTo(BeNil())

					resp := app.post("/logout", nil, session)
					Expect(resp.status).To(Equal(http.StatusOK))
					Expect(resp.cookie).NotTo(BeNil())
					Expect(resp.cookie.Value).To(BeEmpty())

					banned, err := app.banned.IsBanned(context.Background(), session.Value)
					Expect(err).NotTo(HaveOccurred())
					Expect(banned).To(BeTrue())

					verify := app.post("/verify-token", map[string]any{"token": session.Value}, nil)
					Expect(verify.status).To(Equal(http.StatusUnauthorized))
					Expect(verify.body).To(HaveKeyWithValue("error", "Invalid token"))

					again := app.post("/logout", nil, session)
					Expect(again.status).To(Equal(http.StatusUnauthorized))

					missing := app.post("/logout", nil, nil)
					Expect(missing.status).To(Equal(http.StatusBadRequest))
					Expect(missing.body).To(HaveKeyWithValue("error", "Missing token"))
				})

				It("rejects an invalid cookie without clearing it", func() {
					resp := app.post("/logout", nil, &http.Cookie{Name: web.DefaultCookieName, Value: "invalid"})
					Expect(resp.status).To(Equal(http.StatusUnauthorized))
					Expect(resp.cookie).To(BeNil())
					Expect(resp.body).To(HaveKeyWithValue("error", "Invalid token"))
				})

				It("leaves other sessions of the same user valid", func() {
					signup("a@b.com", false)
					first := login("a@b.com").cookie
					second := login("a@b.com").cookie

					Expect(app.post("/logout", nil, first).status).To(Equal(http.StatusOK))
					Expect(app.post("/verify-token", map[string]any{"token": second.Value}, nil).status).
						To(Equal(http.StatusOK))
				})
			})

			Describe("verify-token", func() {
				It("rejects garbage", func() {
					resp := app.post("/verify-token", map[string]any{"token": "invalid"}, nil)
					Expect(resp.status).To(Equal(http.StatusUnauthorized))
				})

				It("rejects a structurally wrong body", func() {
					resp := app.post("/verify-token", map[string]any{
						"email": "random_email", "password": "passworrdord123", "requires2FA": true,
					}, nil)
					Expect(resp.status).To(Equal(http.StatusUnprocessableEntity))
				})
			})

			It("answers CORS preflight for allowed origins", func() {
				req, err := http.NewRequest(http.MethodOptions, app.server.URL+"/login", nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Origin", "http://localhost:5173")
				resp, err := app.server.Client().Do(req)
				Expect(err).NotTo(HaveOccurred())
				_ = resp.Body.Close()

				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
				Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("http://localhost:5173"))
			})
		})
	}
})
