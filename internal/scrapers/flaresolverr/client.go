// Package flaresolverr talks to a FlareSolverr compatible challenge solver, an
// HTTP service that loads a page in a real browser, solves whatever anti-bot
// challenge is in front of it and hands back the resulting HTML.
package flaresolverr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"packwatch/internal/components/assert"
	"packwatch/internal/components/telemetry"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

// MaxTimeout is the upper bound the solver is given to produce a page.
const MaxTimeout = 10 * time.Second

// extra time granted to the HTTP round trip on top of MaxTimeout
const transportSlack = 2 * time.Second

const (
	report_client_solve   = "client.solve"
	report_circuit_change = "client.circuit"
)

var (
	ErrSolver        = errors.New("challenge solver failed")
	ErrSolverTimeout = errors.New("challenge solver timed out")
)

type solveRequest struct {
	Cmd        string `json:"cmd"`
	Url        string `json:"url"`
	MaxTimeout int64  `json:"maxTimeout"`
}

// Cookie is a cookie the solver's browser held after passing the challenge.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

// Solution is a page loaded by the solver together with the browser state
// that got it through, clearance cookies are usually bound to the user agent.
type Solution struct {
	Url       string   `json:"url"`
	Status    int      `json:"status"`
	Response  string   `json:"response"`
	Cookies   []Cookie `json:"cookies"`
	UserAgent string   `json:"userAgent"`
}

// HttpCookies converts the solver cookies for use in a cookie jar.
func (s Solution) HttpCookies() []*http.Cookie {
	cookies := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		cookies = append(cookies, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	return cookies
}

type solveResponse struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	Solution Solution `json:"solution"`
}

type Client struct {
	endpoint string
	http     *resty.Client
	cb       *gobreaker.CircuitBreaker
	tel      telemetry.API
}

type Options struct {
	// Endpoint is the full solver url, ex. http://localhost:8191/v1
	Endpoint string
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit, defaults to 5.
	FailureThreshold uint32
	// Cooldown is how long the circuit stays open, defaults to 1 minute.
	Cooldown time.Duration
}

func NewClient(opts Options, tel telemetry.API) *Client {
	assert.NotEmptyStr(opts.Endpoint)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("flaresolverr", tel)

	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = time.Minute
	}

	httpClient := resty.New()
	httpClient.SetTimeout(MaxTimeout + transportSlack)
	httpClient.SetHeader("content-type", "application/json")
	telemetry.InstrumentResty(httpClient, tel)

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "flaresolverr",
		MaxRequests: 1,
		Timeout:     opts.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		// shutting down is not the solver's fault
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			tel.ReportWarning(report_circuit_change, name, from.String(), to.String())
		},
	})

	return &Client{
		endpoint: opts.Endpoint,
		http:     httpClient,
		cb:       cb,
		tel:      tel,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Solve asks the solver to load `target` and returns the page with the
// cookies and user agent that passed the challenge.
// Errors always wrap either ErrSolver or ErrSolverTimeout.
func (c *Client) Solve(ctx context.Context, target string) (Solution, error) {
	ctx, cancel := context.WithTimeout(ctx, MaxTimeout+transportSlack)
	defer cancel()

	result, err := c.cb.Execute(func() (any, error) {
		return c.solve(ctx, target)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Solution{}, fmt.Errorf("%w: %v", ErrSolver, err)
	}
	if err != nil {
		return Solution{}, err
	}
	return result.(Solution), nil
}

func (c *Client) solve(ctx context.Context, target string) (Solution, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(solveRequest{
			Cmd:        "request.get",
			Url:        target,
			MaxTimeout: MaxTimeout.Milliseconds(),
		}).
		Post(c.endpoint)
	if err != nil {
		if isTimeout(err) {
			c.tel.ReportWarning(report_client_solve, fmt.Errorf("timeout: %w", err), target)
			return Solution{}, fmt.Errorf("%w: %v", ErrSolverTimeout, err)
		}
		c.tel.ReportBroken(report_client_solve, fmt.Errorf("request: %w", err), target)
		return Solution{}, fmt.Errorf("%w: %v", ErrSolver, err)
	}

	var body solveResponse
	err = json.Unmarshal(res.Body(), &body)
	if err != nil {
		c.tel.ReportBroken(
			report_client_solve,
			fmt.Errorf("decode response: %w", err),
			target,
			res.StatusCode(),
		)
		return Solution{}, fmt.Errorf("%w: malformed response (http %d): %v", ErrSolver, res.StatusCode(), err)
	}

	if body.Status != "ok" {
		// flaresolverr reports its own timeouts as "Error: ... Timeout after N seconds."
		if strings.Contains(strings.ToLower(body.Message), "timeout") {
			c.tel.ReportWarning(report_client_solve, body.Message, target)
			return Solution{}, fmt.Errorf("%w: %s", ErrSolverTimeout, body.Message)
		}
		c.tel.ReportBroken(report_client_solve, body.Status, body.Message, target)
		return Solution{}, fmt.Errorf("%w: status %q: %s", ErrSolver, body.Status, body.Message)
	}
	if body.Solution.Status >= 400 {
		c.tel.ReportWarning(report_client_solve, "upstream status", body.Solution.Status, target)
		return Solution{}, fmt.Errorf("%w: page answered %d after solving", ErrSolver, body.Solution.Status)
	}
	if body.Solution.Response == "" {
		c.tel.ReportBroken(report_client_solve, "empty solution", target)
		return Solution{}, fmt.Errorf("%w: empty solution", ErrSolver)
	}

	return body.Solution, nil
}
