package tests_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"ticketing/config"
	"ticketing/message"
	"ticketing/postgres"
	"ticketing/service"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/lithammer/shortuuid/v3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://localhost:8080"

func getEnvOrDefault(key string, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func requireInfra(t *testing.T) (postgresURL, redisAddr string) {
	t.Helper()

	postgresURL = os.Getenv("POSTGRES_URL")
	redisAddr = os.Getenv("REDIS_ADDR")
	if postgresURL == "" || redisAddr == "" {
		t.Skip("POSTGRES_URL and REDIS_ADDR must be set to run component tests")
	}
	return postgresURL, redisAddr
}

func setupRedis(t *testing.T, addr string) *redis.Client {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() {
		_ = rdb.Close()
	})
	return rdb
}

func setupDB(t *testing.T, url string) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("postgres", url)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func startService(t *testing.T, db *sqlx.DB, rdb *redis.Client, gateway *MockGateway, mailer *MockMailer) {
	t.Helper()

	log.Init(logrus.InfoLevel)
	logger := log.NewWatermill(logrus.NewEntry(logrus.StandardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, postgres.InitialiseDB(ctx, db))
	require.NoError(t, message.InitialiseOutbox(db, logger))

	cfg := config.Config{
		JWTSecret:       "component-test-secret",
		HTTPAddr:        getEnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        "info",
		TokenTTL:        time.Hour,
		CacheTTL:        time.Second,
		PollInterval:    100 * time.Millisecond,
		SweepInterval:   time.Second,
		ClaimLease:      time.Minute,
		PaymentExpiry:   30 * time.Minute,
		RateLimit:       1000,
		RateLimitWindow: time.Minute,
	}

	svc, err := service.New(service.Deps{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		RedisClient: rdb,
		Gateway:     gateway,
		Mailer:      mailer,
	})
	require.NoError(t, err)

	go func() {
		if err := svc.Run(ctx); err != nil {
			t.Log("service stopped:", err)
		}
	}()

	waitForHttpServer(t)
}

func waitForHttpServer(t *testing.T) {
	t.Helper()

	require.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			resp, err := http.Get(baseURL + "/health")
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()

			if assert.Less(t, resp.StatusCode, 300, "API not ready, http status: %d", resp.StatusCode) {
				return
			}
		},
		time.Second*10,
		time.Millisecond*50,
	)
}

// sendRequest sends body as JSON and decodes the reply into out when out is
// non-nil. It returns the status code.
func sendRequest(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewBuffer(b)
	}

	req, err := http.NewRequest(method, baseURL+path, payload)
	require.NoError(t, err)

	req.Header.Set("Correlation-ID", shortuuid.New())
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type session struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

func signupAndLogin(t *testing.T, role string) session {
	t.Helper()

	email := "user-" + shortuuid.New() + "@example.com"
	password := "correct-horse-battery"

	status := sendRequest(t, http.MethodPost, "/auth/signup", "", map[string]any{
		"email":     email,
		"password":  password,
		"firstName": "Ada",
		"role":      role,
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var s session
	status = sendRequest(t, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, &s)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, s.Token)

	return s
}

type eventResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	TicketTypes []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"ticketTypes"`
}

func createPublishedEvent(t *testing.T, token, price string) eventResponse {
	t.Helper()

	var ev eventResponse
	status := sendRequest(t, http.MethodPost, "/events", token, map[string]any{
		"title":    "Lagos Jazz Night " + shortuuid.New(),
		"location": "Lagos",
		"startsAt": time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"price":    price,
		"currency": "NGN",
		"capacity": 50,
		"status":   "PUBLISHED",
	}, &ev)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "PUBLISHED", ev.Status)

	return ev
}

type ticketResponse struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	EventID string `json:"eventId"`
	Status  string `json:"status"`
}

type purchaseResponse struct {
	Tickets []ticketResponse `json:"tickets"`
	Payment *struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    string `json:"amount"`
	} `json:"payment"`
	AuthorizationURL string `json:"authorizationUrl"`
}

func assertEmailSent(t *testing.T, mailer *MockMailer, to, subjectPrefix string) {
	t.Helper()

	assert.EventuallyWithT(
		t,
		func(collectT *assert.CollectT) {
			var found bool
			for _, e := range mailer.SentTo(to) {
				if len(e.Subject) >= len(subjectPrefix) && e.Subject[:len(subjectPrefix)] == subjectPrefix {
					found = true
				}
			}
			assert.True(collectT, found, "no %q email sent to %s", subjectPrefix, to)
		},
		10*time.Second,
		100*time.Millisecond,
	)
}
