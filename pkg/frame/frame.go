// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package frame implements the filmReel Frame Parser & Model: deserializing
// and validating a ".fr.json" file into a typed Frame, and parsing the
// Frame Filename grammar into its reel/ordering/command components.
package frame

import (
	"encoding/json"
	"fmt"

	"github.com/mkatychev/darkroom/pkg/errs"
	"github.com/mkatychev/darkroom/pkg/jsonval"
	"github.com/mkatychev/darkroom/pkg/template"
)

// Protocol identifies the transport a Frame's request targets.
type Protocol string

const (
	HTTP Protocol = "HTTP"
	GRPC Protocol = "gRPC"
)

// Attempts configures the Frame Executor's retry policy.
type Attempts struct {
	Times uint32 // total dispatch attempts, including the first; minimum 1
	MS    uint32 // delay between attempts, in milliseconds
}

// Request is a Frame's request specification. For HTTP, URI is
// "<METHOD> <path-or-url>"; for gRPC, URI is "<package>.<service>/<method>".
type Request struct {
	URI        string
	Body       any // jsonval Value, nil if absent
	Header     *jsonval.Object
	Entrypoint string
	Query      *jsonval.Object
	Form       *jsonval.Object
	Attempts   *Attempts
}

// ValidationMode is the partial/unordered configuration for one selector
// scope of a Frame's expected response.
type ValidationMode struct {
	Partial   bool
	Unordered bool
}

// Response is a Frame's expected response specification.
type Response struct {
	Status     int
	Body       any // jsonval Value, nil if absent
	Validation map[string]ValidationMode
}

// CutInstructions is a Frame's optional cut instruction set: the register
// variables it reads from (From) and the write-specs it extracts into the
// register from the actual response (To).
type CutInstructions struct {
	From []string
	To   map[string]string // VAR -> JSON-path write-spec
}

// Frame is the parsed, validated record of one ".fr.json" file.
type Frame struct {
	Protocol Protocol
	Request  Request
	Response Response
	Cut      *CutInstructions

	// Filename is the parsed metadata of the file this Frame was loaded
	// from. Nil for Frames constructed directly (e.g. in a VirtualReel
	// descriptor entry before a path is resolved).
	Filename *Filename

	// Warnings holds non-fatal diagnostics, such as unknown top-level
	// keys, collected during Parse.
	Warnings []string
}

var knownTopLevelKeys = map[string]bool{
	"protocol": true,
	"request":  true,
	"response": true,
	"cut":      true,
}

// Parse deserializes and validates a Frame from data (the raw ".fr.json"
// contents). Unknown top-level keys are recorded as warnings, not errors.
// Malformed JSON, an unterminated "${" reference, a non-array "from", a
// non-string-valued "to", or an unreferenced "from" variable is a
// FrameParse error.
func Parse(data []byte) (*Frame, error) {
	v, err := jsonval.Parse(data)
	if err != nil {
		return nil, errs.New(errs.FrameParse, "parse frame json", err)
	}
	obj, ok := v.(*jsonval.Object)
	if !ok {
		return nil, errs.New(errs.FrameParse, "parse frame json", fmt.Errorf("top level must be a JSON object"))
	}

	f := &Frame{}
	for _, k := range obj.Keys() {
		if !knownTopLevelKeys[k] {
			f.Warnings = append(f.Warnings, fmt.Sprintf("unknown top-level key %q", k))
		}
	}

	protoRaw, ok := obj.Get("protocol")
	if !ok {
		return nil, errs.New(errs.FrameParse, "parse frame", fmt.Errorf("missing required key \"protocol\""))
	}
	protoStr, ok := protoRaw.(string)
	if !ok {
		return nil, errs.New(errs.FrameParse, "parse frame", fmt.Errorf("\"protocol\" must be a string"))
	}
	switch Protocol(protoStr) {
	case HTTP, GRPC:
		f.Protocol = Protocol(protoStr)
	default:
		return nil, errs.New(errs.FrameParse, "parse frame", fmt.Errorf("unknown protocol %q", protoStr))
	}

	reqRaw, ok := obj.Get("request")
	if !ok {
		return nil, errs.New(errs.FrameParse, "parse frame", fmt.Errorf("missing required key \"request\""))
	}
	reqObj, ok := reqRaw.(*jsonval.Object)
	if !ok {
		return nil, errs.New(errs.FrameParse, "parse frame", fmt.Errorf("\"request\" must be an object"))
	}
	req, err := parseRequest(reqObj)
	if err != nil {
		return nil, err
	}
	f.Request = *req

	respRaw, ok := obj.Get("response")
	if !ok {
		return nil, errs.New(errs.FrameParse, "parse frame", fmt.Errorf("missing required key \"response\""))
	}
	respObj, ok := respRaw.(*jsonval.Object)
	if !ok {
		return nil, errs.New(errs.FrameParse, "parse frame", fmt.Errorf("\"response\" must be an object"))
	}
	resp, err := parseResponse(respObj)
	if err != nil {
		return nil, err
	}
	f.Response = *resp

	if cutRaw, ok := obj.Get("cut"); ok {
		cutObj, ok := cutRaw.(*jsonval.Object)
		if !ok {
			return nil, errs.New(errs.FrameParse, "parse frame", fmt.Errorf("\"cut\" must be an object"))
		}
		ci, err := parseCutInstructions(cutObj)
		if err != nil {
			return nil, err
		}
		f.Cut = ci
	}

	if err := f.validateReferences(); err != nil {
		return nil, err
	}

	return f, nil
}

func parseRequest(obj *jsonval.Object) (*Request, error) {
	req := &Request{}
	uriRaw, ok := obj.Get("uri")
	if !ok {
		return nil, errs.New(errs.FrameParse, "parse request", fmt.Errorf("missing required key \"uri\""))
	}
	uri, ok := uriRaw.(string)
	if !ok {
		return nil, errs.New(errs.FrameParse, "parse request", fmt.Errorf("\"uri\" must be a string"))
	}
	req.URI = uri

	if v, ok := obj.Get("body"); ok {
		req.Body = v
	}
	if v, ok := obj.Get("header"); ok {
		o, ok := v.(*jsonval.Object)
		if !ok {
			return nil, errs.New(errs.FrameParse, "parse request", fmt.Errorf("\"header\" must be an object"))
		}
		req.Header = o
	}
	if v, ok := obj.Get("entrypoint"); ok {
		s, ok := v.(string)
		if !ok {
			return nil, errs.New(errs.FrameParse, "parse request", fmt.Errorf("\"entrypoint\" must be a string"))
		}
		req.Entrypoint = s
	}
	if v, ok := obj.Get("query"); ok {
		o, ok := v.(*jsonval.Object)
		if !ok {
			return nil, errs.New(errs.FrameParse, "parse request", fmt.Errorf("\"query\" must be an object"))
		}
		req.Query = o
	}
	if v, ok := obj.Get("form"); ok {
		o, ok := v.(*jsonval.Object)
		if !ok {
			return nil, errs.New(errs.FrameParse, "parse request", fmt.Errorf("\"form\" must be an object"))
		}
		req.Form = o
	}
	if v, ok := obj.Get("attempts"); ok {
		o, ok := v.(*jsonval.Object)
		if !ok {
			return nil, errs.New(errs.FrameParse, "parse request", fmt.Errorf("\"attempts\" must be an object"))
		}
		a, err := parseAttempts(o)
		if err != nil {
			return nil, err
		}
		req.Attempts = a
	}
	return req, nil
}

func parseAttempts(obj *jsonval.Object) (*Attempts, error) {
	a := &Attempts{Times: 1}
	if v, ok := obj.Get("times"); ok {
		n, ok := asUint32(v)
		if !ok || n < 1 {
			return nil, errs.New(errs.FrameParse, "parse attempts", fmt.Errorf("\"times\" must be an integer >= 1"))
		}
		a.Times = n
	}
	if v, ok := obj.Get("ms"); ok {
		n, ok := asUint32(v)
		if !ok {
			return nil, errs.New(errs.FrameParse, "parse attempts", fmt.Errorf("\"ms\" must be a non-negative integer"))
		}
		a.MS = n
	}
	return a, nil
}

func parseResponse(obj *jsonval.Object) (*Response, error) {
	resp := &Response{}
	statusRaw, ok := obj.Get("status")
	if !ok {
		return nil, errs.New(errs.FrameParse, "parse response", fmt.Errorf("missing required key \"status\""))
	}
	status, ok := asUint32(statusRaw)
	if !ok {
		return nil, errs.New(errs.FrameParse, "parse response", fmt.Errorf("\"status\" must be an integer"))
	}
	resp.Status = int(status)

	if v, ok := obj.Get("body"); ok {
		resp.Body = v
	}
	if v, ok := obj.Get("validation"); ok {
		vo, ok := v.(*jsonval.Object)
		if !ok {
			return nil, errs.New(errs.FrameParse, "parse response", fmt.Errorf("\"validation\" must be an object"))
		}
		resp.Validation = map[string]ValidationMode{}
		for _, sel := range vo.Keys() {
			modeRaw, _ := vo.Get(sel)
			modeObj, ok := modeRaw.(*jsonval.Object)
			if !ok {
				return nil, errs.New(errs.FrameParse, "parse response", fmt.Errorf("validation entry %q must be an object", sel))
			}
			var mode ValidationMode
			if pv, ok := modeObj.Get("partial"); ok {
				b, ok := pv.(bool)
				if !ok {
					return nil, errs.New(errs.FrameParse, "parse response", fmt.Errorf("validation %q: \"partial\" must be a boolean", sel))
				}
				mode.Partial = b
			}
			if uv, ok := modeObj.Get("unordered"); ok {
				b, ok := uv.(bool)
				if !ok {
					return nil, errs.New(errs.FrameParse, "parse response", fmt.Errorf("validation %q: \"unordered\" must be a boolean", sel))
				}
				mode.Unordered = b
			}
			resp.Validation[sel] = mode
		}
	}
	return resp, nil
}

func parseCutInstructions(obj *jsonval.Object) (*CutInstructions, error) {
	ci := &CutInstructions{}
	if v, ok := obj.Get("from"); ok {
		arr, ok := v.([]any)
		if !ok {
			return nil, errs.New(errs.FrameParse, "parse cut", fmt.Errorf("\"from\" must be an array of strings"))
		}
		for _, e := range arr {
			s, ok := e.(string)
			if !ok {
				return nil, errs.New(errs.FrameParse, "parse cut", fmt.Errorf("\"from\" must be an array of strings"))
			}
			ci.From = append(ci.From, s)
		}
	}
	if v, ok := obj.Get("to"); ok {
		o, ok := v.(*jsonval.Object)
		if !ok {
			return nil, errs.New(errs.FrameParse, "parse cut", fmt.Errorf("\"to\" must be an object of strings"))
		}
		ci.To = map[string]string{}
		for _, k := range o.Keys() {
			vv, _ := o.Get(k)
			s, ok := vv.(string)
			if !ok {
				return nil, errs.New(errs.FrameParse, "parse cut", fmt.Errorf("\"to\" must be an object of strings"))
			}
			ci.To[k] = s
		}
	}
	return ci, nil
}

// validateReferences enforces invariant 2: every cut.from variable must be
// consumed by at least one "${VAR}" reference in the request or response
// subtree (open question resolved: either subtree counts).
func (f *Frame) validateReferences() error {
	reqRefs, err := f.collectRequestRefs()
	if err != nil {
		return err
	}
	respRefs, err := f.collectResponseRefs()
	if err != nil {
		return err
	}
	referenced := map[string]bool{}
	for _, r := range reqRefs {
		referenced[r] = true
	}
	for _, r := range respRefs {
		referenced[r] = true
	}

	if f.Cut == nil {
		return nil
	}
	for _, name := range f.Cut.From {
		if !referenced[name] {
			return errs.New(errs.FrameParse, "validate cut.from", fmt.Errorf("cut.from variable %q is never referenced in request or response", name))
		}
	}
	return nil
}

// collectRequestRefs returns the distinct "${VAR}" names referenced in the
// Frame's request subtree (uri, body, header, query, form, entrypoint).
func (f *Frame) collectRequestRefs() ([]string, error) {
	var refs []string
	for _, v := range []any{f.Request.URI, f.Request.Body, f.Request.Header, f.Request.Query, f.Request.Form, f.Request.Entrypoint} {
		if v == nil {
			continue
		}
		rs, err := template.FindRefs(v)
		if err != nil {
			return nil, err
		}
		refs = append(refs, rs...)
	}
	return refs, nil
}

// collectResponseRefs returns the distinct "${VAR}" names referenced in
// the Frame's expected response body.
func (f *Frame) collectResponseRefs() ([]string, error) {
	if f.Response.Body == nil {
		return nil, nil
	}
	return template.FindRefs(f.Response.Body)
}

func asUint32(v any) (uint32, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint32(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil || i < 0 {
			return 0, false
		}
		return uint32(i), true
	default:
		return 0, false
	}
}
