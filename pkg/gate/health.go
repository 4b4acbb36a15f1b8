package gate

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	log "github.com/sirupsen/logrus"

	"github.com/nais/promote/pkg/failure"
)

const requestTimeout = 10 * time.Second

// HealthGate passes when the health endpoint of the application answers with a 2xx status.
// Port 443 is requested over HTTPS without certificate validation, since a managed
// certificate may still be provisioning while the address is already in use.
type HealthGate struct {
	Path     string
	Attempts int
	Delay    time.Duration
	Client   *http.Client
}

var _ Gate = &HealthGate{}

func (g *HealthGate) client() *http.Client {
	if g.Client != nil {
		return g.Client
	}
	transport := cleanhttp.DefaultTransport()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   requestTimeout,
	}
}

// URL returns the health endpoint of an address.
func (g *HealthGate) URL(address string, port int) string {
	scheme := "http"
	if port == 443 {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(address, strconv.Itoa(port)), g.Path)
}

func (g *HealthGate) Run(ctx context.Context, address string, port int) error {
	url := g.URL(address, port)
	client := g.client()
	attempts := max(g.Attempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = g.check(ctx, client, url)
		if err == nil {
			log.Infof("Health check %s passed", url)
			return nil
		}
		if ctx.Err() != nil {
			return failure.Wrap(failure.Interrupted, ctx.Err())
		}

		log.Warnf("Health check %s failed (attempt %d of %d): %s", url, attempt, attempts, err)
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return failure.Wrap(failure.Interrupted, ctx.Err())
		case <-time.After(g.Delay):
		}
	}

	return failure.Errorf(failure.Acceptance, "health check %s failed: %w", url, err)
}

func (g *HealthGate) check(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	return nil
}

func (g *HealthGate) String() string {
	return fmt.Sprintf("health check %s", g.Path)
}
