package loadgen

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
}

type Result struct {
	TotalRequests int64
	Failures      int64
	Status2xx     int64
	Status4xx     int64
	Status5xx     int64
}

type endpoint struct {
	method string
	path   string
	body   func(r *rand.Rand) string
}

func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 15
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}

	client := &http.Client{Timeout: 5 * time.Second}
	endpoints := endpointsForProfile(cfg.Profile)
	if len(endpoints) == 0 {
		return Result{}, fmt.Errorf("unknown profile: %s", cfg.Profile)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var total, failures, s2xx, s4xx, s5xx int64
	jobs := make(chan endpoint, cfg.Concurrency*2)
	wg := sync.WaitGroup{}

	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(cfg.Seed + int64(worker)))
			for ep := range jobs {
				var body *strings.Reader
				if ep.body != nil {
					body = strings.NewReader(ep.body(rng))
				} else {
					body = strings.NewReader("")
				}
				req, err := http.NewRequestWithContext(ctx, ep.method, cfg.BaseURL+ep.path, body)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				if ep.body != nil {
					req.Header.Set("Content-Type", "application/json")
				}
				resp, err := client.Do(req)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				_ = resp.Body.Close()
				atomic.AddInt64(&total, 1)
				switch {
				case resp.StatusCode >= 200 && resp.StatusCode < 300:
					atomic.AddInt64(&s2xx, 1)
				case resp.StatusCode >= 400 && resp.StatusCode < 500:
					atomic.AddInt64(&s4xx, 1)
				case resp.StatusCode >= 500:
					atomic.AddInt64(&s5xx, 1)
				}
			}
		}(i)
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()
	i := 0
	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return Result{TotalRequests: total, Failures: failures, Status2xx: s2xx, Status4xx: s4xx, Status5xx: s5xx}, nil
		case <-ticker.C:
			jobs <- endpoints[i%len(endpoints)]
			i++
		}
	}
}

var candidatePasswords = []string{
	"short",
	"alllowercasebutlong",
	"Tr!ckyOwl7Landing",
	"passw0rd123!A",
	"aaab2Xy!longenough",
}

func passwordCheckBody(r *rand.Rand) string {
	return fmt.Sprintf(`{"password":%q}`, candidatePasswords[r.Intn(len(candidatePasswords))])
}

func loginBody(r *rand.Rand) string {
	return fmt.Sprintf(`{"email":"loadgen%d@example.com","password":"Wrong!Password%d"}`, r.Intn(50), r.Intn(1000))
}

func forgotBody(r *rand.Rand) string {
	return fmt.Sprintf(`{"email":"loadgen%d@example.com"}`, r.Intn(50))
}

func endpointsForProfile(profile string) []endpoint {
	check := endpoint{method: http.MethodPost, path: "/api/v1/auth/local/password/check", body: passwordCheckBody}
	login := endpoint{method: http.MethodPost, path: "/api/v1/auth/local/login", body: loginBody}
	forgot := endpoint{method: http.MethodPost, path: "/api/v1/auth/local/password/forgot", body: forgotBody}
	refresh := endpoint{method: http.MethodPost, path: "/api/v1/auth/refresh"}
	googleLogin := endpoint{method: http.MethodGet, path: "/api/v1/auth/google/login"}
	health := endpoint{method: http.MethodGet, path: "/health/ready"}

	switch strings.ToLower(profile) {
	case "", "mixed":
		return []endpoint{check, login, googleLogin, refresh, health}
	case "auth":
		return []endpoint{login, forgot, refresh, googleLogin}
	case "policy":
		return []endpoint{check}
	case "error-heavy":
		return []endpoint{login, refresh, forgot}
	default:
		return nil
	}
}
