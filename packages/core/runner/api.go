package runner

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abdul-hamid-achik/playspec/packages/assertions"
	"github.com/abdul-hamid-achik/playspec/packages/capture"
	"github.com/abdul-hamid-achik/playspec/packages/core/env"
	"github.com/abdul-hamid-achik/playspec/packages/core/outcome"
	"github.com/abdul-hamid-achik/playspec/packages/core/parser"
	"github.com/abdul-hamid-achik/playspec/packages/core/testctx"
	"github.com/abdul-hamid-achik/playspec/packages/http"
)

func (r *Runner) apiClient() (*http.Client, error) {
	r.clientOnce.Do(func() {
		if r.deps.Client != nil {
			r.client = r.deps.Client
			return
		}
		r.client, r.clientErr = http.FromSettings(r.deps.Settings, http.WithLogger(r.log))
	})
	return r.client, r.clientErr
}

// runAPI sends the check's request, evaluates its expectations and stores
// its captures in vars.
func (r *Runner) runAPI(ctx context.Context, check *parser.Check, vars *env.Resolver, baseDir string) *CheckResult {
	ctx, owner := testctx.NewOwner(ctx)
	res := &CheckResult{
		Name:     check.Name,
		Kind:     KindAPI,
		Owner:    owner,
		Captures: map[string]any{},
	}
	log := r.log.WithFields(logrus.Fields{"owner": owner, "check": check.Name})

	client, err := r.apiClient()
	if err != nil {
		res.Outcome, res.Error = outcome.Failure, err
		return res
	}

	req, err := buildRequest(check.Request, vars)
	if err != nil {
		res.Outcome, res.Error = outcome.Failure, err
		return res
	}
	res.Request = req

	start := time.Now()
	resp, err := client.Do(ctx, req)
	res.Duration = time.Since(start)
	if r.deps.Recorder != nil {
		r.deps.Recorder.Record("api "+req.Method, res.Duration, err)
	}
	if err != nil {
		res.Outcome, res.Error = outcomeOf(err), err
		return res
	}
	res.Response = resp

	passed := resp.IsSuccess()
	if len(check.Expect) > 0 {
		expect := make([]assertions.Assertion, len(check.Expect))
		for i, a := range check.Expect {
			expect[i] = a
			if s, ok := a.Expected.(string); ok {
				expect[i].Expected = vars.Resolve(s)
			}
		}
		res.Assertions = assertions.EvaluateAll(resp, baseDir, expect)
		passed = len(assertions.Failed(res.Assertions)) == 0
	}

	if len(check.Capture) > 0 {
		values, missing := capture.Apply(resp, check.Name, check.Capture, vars)
		res.Captures = values
		if len(missing) > 0 {
			log.WithField("captures", missing).Warn("Captures not found in response")
		}
	}

	res.Outcome = outcome.Failure
	if passed {
		res.Outcome = outcome.Success
	}
	log.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"outcome": res.Outcome.String(),
	}).Debug("API check finished")
	return res
}

func buildRequest(spec *parser.Request, vars *env.Resolver) (*http.Request, error) {
	req := http.NewRequest(spec.Method, vars.Resolve(spec.URL))
	for k, v := range spec.Headers {
		req.SetHeader(k, vars.Resolve(v))
	}
	for k, v := range spec.Query {
		req.SetQueryParam(k, vars.Resolve(v))
	}
	body, err := spec.BodyString()
	if err != nil {
		return nil, err
	}
	req.SetBody(vars.Resolve(body))
	if spec.Timeout > 0 {
		req.SetTimeout(time.Duration(spec.Timeout) * time.Millisecond)
	}
	return req, nil
}
