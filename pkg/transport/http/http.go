// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package http implements transport.Adapter over net/http: the HTTP half
// of the Protocol Adapter contract.
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mkatychev/darkroom/pkg/errs"
	"github.com/mkatychev/darkroom/pkg/frame"
	"github.com/mkatychev/darkroom/pkg/jsonval"
	"github.com/mkatychev/darkroom/pkg/transport"
)

var _ transport.Adapter = (*Adapter)(nil)

// Adapter dispatches HTTP Frames via an *http.Client.
type Adapter struct {
	Client *http.Client
}

// New returns an Adapter. insecureTLS, when true, skips TLS certificate
// verification (for dispatching against local/self-signed test fixtures).
func New(insecureTLS bool) *Adapter {
	client := &http.Client{}
	if insecureTLS {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		}
	}
	return &Adapter{Client: client}
}

// Send builds an *http.Request from req ("<METHOD> <path-or-url>"; body,
// header, query, form applied per the request spec) and dispatches it.
func (a *Adapter) Send(ctx context.Context, protocol frame.Protocol, req frame.Request, fallback transport.Fallback) (*transport.Response, error) {
	if protocol != frame.HTTP {
		return nil, errs.New(errs.Transport, "dispatch", fmt.Errorf("http adapter cannot dispatch protocol %q", protocol))
	}

	method, target, err := splitURI(req.URI)
	if err != nil {
		return nil, errs.New(errs.Transport, "build request", err)
	}

	target, err = resolveTarget(target, req.Entrypoint)
	if err != nil {
		return nil, errs.New(errs.Transport, "resolve target", err)
	}

	body, contentType, err := buildBody(req)
	if err != nil {
		return nil, errs.New(errs.Transport, "build body", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errs.New(errs.Transport, "build request", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range fallback.Headers {
		httpReq.Header.Set(k, v)
	}
	applyHeaders(httpReq, req.Header)
	applyQuery(httpReq, req.Query)

	resp, err := a.Client.Do(httpReq)
	if err != nil {
		return nil, errs.New(errs.Transport, "dispatch", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.Transport, "read response body", err)
	}

	if len(strings.TrimSpace(string(raw))) == 0 {
		return &transport.Response{Body: nil, Status: resp.StatusCode}, nil
	}

	parsed, err := jsonval.Parse(raw)
	if err != nil {
		return nil, errs.New(errs.Transport, "parse response body as json", err)
	}
	return &transport.Response{Body: parsed, Status: resp.StatusCode}, nil
}

func splitURI(uri string) (method, target string, err error) {
	parts := strings.SplitN(strings.TrimSpace(uri), " ", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("uri %q must be \"<METHOD> <path-or-url>\"", uri)
	}
	return strings.ToUpper(parts[0]), parts[1], nil
}

func resolveTarget(target, entrypoint string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse uri target %q: %w", target, err)
	}
	if u.IsAbs() {
		return target, nil
	}
	if entrypoint == "" {
		return "", fmt.Errorf("relative target %q requires an entrypoint", target)
	}
	base, err := url.Parse(entrypoint)
	if err != nil {
		return "", fmt.Errorf("parse entrypoint %q: %w", entrypoint, err)
	}
	return base.ResolveReference(u).String(), nil
}

func buildBody(req frame.Request) (io.Reader, string, error) {
	if req.Form != nil {
		form := url.Values{}
		for _, k := range req.Form.Keys() {
			v, _ := req.Form.Get(k)
			form.Set(k, fmt.Sprintf("%v", v))
		}
		return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
	}
	if req.Body == nil {
		return nil, "", nil
	}
	b, err := jsonval.Marshal(req.Body)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(b), "application/json", nil
}

func applyHeaders(httpReq *http.Request, header *jsonval.Object) {
	if header == nil {
		return
	}
	for _, k := range header.Keys() {
		v, _ := header.Get(k)
		httpReq.Header.Set(k, fmt.Sprintf("%v", v))
	}
}

func applyQuery(httpReq *http.Request, query *jsonval.Object) {
	if query == nil {
		return
	}
	q := httpReq.URL.Query()
	for _, k := range query.Keys() {
		v, _ := query.Get(k)
		q.Set(k, fmt.Sprintf("%v", v))
	}
	httpReq.URL.RawQuery = q.Encode()
}
