// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package grpc implements transport.Adapter over a reflection-free dynamic
// gRPC client: method input/output types are resolved from compiled
// FileDescriptorSet protosets (the --proto-files fallback) rather than by
// shelling out to grpcurl, using google.golang.org/protobuf's dynamicpb to
// build and decode messages without generated Go stubs.
package grpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mkatychev/darkroom/pkg/errs"
	"github.com/mkatychev/darkroom/pkg/frame"
	"github.com/mkatychev/darkroom/pkg/jsonval"
	"github.com/mkatychev/darkroom/pkg/logging"
	"github.com/mkatychev/darkroom/pkg/transport"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

var _ transport.Adapter = (*Adapter)(nil)

// Adapter dispatches gRPC Frames as unary calls against methods resolved
// from compiled descriptor sets, one connection per target authority.
type Adapter struct {
	Logger *logging.Logger

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// New returns an Adapter. A nil logger disables dispatch logging.
func New(logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Nop
	}
	return &Adapter{Logger: logger, conns: map[string]*grpc.ClientConn{}}
}

// Send resolves req.URI ("<package>.<Service>/<Method>") against the
// descriptor sets named in fallback.ProtoFiles, builds the request message
// from req.Body via protojson, and issues a unary call. The gRPC status
// code becomes transport.Response.Status, except Unavailable, which is
// returned as a Transport error; the response message round-trips through
// protojson into a filmReel JSON Value.
func (a *Adapter) Send(ctx context.Context, protocol frame.Protocol, req frame.Request, fallback transport.Fallback) (*transport.Response, error) {
	if protocol != frame.GRPC {
		return nil, errs.New(errs.Transport, "dispatch", fmt.Errorf("grpc adapter cannot dispatch protocol %q", protocol))
	}
	if req.Entrypoint == "" {
		return nil, errs.New(errs.Transport, "dispatch", fmt.Errorf("gRPC request requires an entrypoint host:port"))
	}

	files, err := loadDescriptorSets(fallback.ProtoFiles)
	if err != nil {
		return nil, errs.New(errs.Transport, "load proto descriptors", err)
	}

	method, err := resolveMethod(files, req.URI)
	if err != nil {
		return nil, errs.New(errs.Transport, "resolve method", err)
	}

	conn, err := a.dial(req.Entrypoint, fallback)
	if err != nil {
		return nil, errs.New(errs.Transport, "dial", err)
	}

	reqMsg := dynamicpb.NewMessage(method.Input())
	if req.Body != nil {
		raw, err := jsonval.Marshal(req.Body)
		if err != nil {
			return nil, errs.New(errs.Transport, "marshal request body", err)
		}
		if err := protojson.Unmarshal(raw, reqMsg); err != nil {
			return nil, errs.New(errs.Transport, "decode request body into message", err)
		}
	}

	respMsg := dynamicpb.NewMessage(method.Output())
	fullMethod := fmt.Sprintf("/%s/%s", method.Parent().(protoreflect.ServiceDescriptor).FullName(), method.Name())

	headers := mergeHeaders(fallback.Headers, req.Header)
	callCtx := withHeaderMetadata(ctx, headers)

	invokeErr := conn.Invoke(callCtx, fullMethod, reqMsg, respMsg)
	st, _ := status.FromError(invokeErr)
	if invokeErr != nil && st.Code() == codes.Unavailable {
		return nil, errs.New(errs.Transport, "dispatch", invokeErr)
	}

	var body any
	if respMsg != nil && proto.Size(respMsg) > 0 {
		raw, mErr := protojson.Marshal(respMsg)
		if mErr != nil {
			return nil, errs.New(errs.Transport, "marshal response message", mErr)
		}
		body, err = jsonval.Parse(raw)
		if err != nil {
			return nil, errs.New(errs.Transport, "parse response message as json", err)
		}
	}

	return &transport.Response{Body: body, Status: int(st.Code())}, nil
}

func (a *Adapter) dial(target string, fallback transport.Fallback) (*grpc.ClientConn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if conn, ok := a.conns[target]; ok {
		return conn, nil
	}

	var creds credentials.TransportCredentials
	if fallback.InsecureTLS {
		creds = credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec
	} else {
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(creds),
		grpc.WithChainUnaryInterceptor(grpc_middleware.ChainUnaryClient(a.loggingInterceptor)),
	)
	if err != nil {
		return nil, err
	}
	a.conns[target] = conn
	return conn, nil
}

func (a *Adapter) loggingInterceptor(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	err := invoker(ctx, method, req, reply, cc, opts...)
	st, _ := status.FromError(err)
	a.Logger.Debug("grpc dispatch", "method", method, "code", st.Code().String())
	return err
}

// loadDescriptorSets unmarshals each path as a binary-encoded
// descriptorpb.FileDescriptorSet (the output of "protoc -o out.protoset")
// and registers its files into a combined protoregistry.Files.
func loadDescriptorSets(paths []string) (*protoregistry.Files, error) {
	files := &protoregistry.Files{}
	var fdProtos []*descriptorpb.FileDescriptorProto
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read protoset %q: %w", p, err)
		}
		var set descriptorpb.FileDescriptorSet
		if err := proto.Unmarshal(raw, &set); err != nil {
			return nil, fmt.Errorf("unmarshal protoset %q: %w", p, err)
		}
		fdProtos = append(fdProtos, set.File...)
	}
	for _, fdProto := range fdProtos {
		fd, err := protodesc.NewFile(fdProto, files)
		if err != nil {
			return nil, fmt.Errorf("build file descriptor %q: %w", fdProto.GetName(), err)
		}
		if err := files.RegisterFile(fd); err != nil {
			return nil, fmt.Errorf("register file descriptor %q: %w", fdProto.GetName(), err)
		}
	}
	return files, nil
}

// resolveMethod parses uri ("<package>.<Service>/<Method>") and finds the
// matching method descriptor among the registered files.
func resolveMethod(files *protoregistry.Files, uri string) (protoreflect.MethodDescriptor, error) {
	parts := strings.SplitN(uri, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("uri %q must be \"<package>.<service>/<method>\"", uri)
	}
	svcName, methodName := protoreflect.FullName(parts[0]), parts[1]

	desc, err := files.FindDescriptorByName(svcName)
	if err != nil {
		return nil, fmt.Errorf("service %q not found in proto descriptors: %w", svcName, err)
	}
	svc, ok := desc.(protoreflect.ServiceDescriptor)
	if !ok {
		return nil, fmt.Errorf("%q is not a service", svcName)
	}
	method := svc.Methods().ByName(protoreflect.Name(methodName))
	if method == nil {
		return nil, fmt.Errorf("method %q not found on service %q", methodName, svcName)
	}
	if method.IsStreamingClient() || method.IsStreamingServer() {
		return nil, fmt.Errorf("method %q is streaming, which darkroom does not dispatch", methodName)
	}
	return method, nil
}

func withHeaderMetadata(ctx context.Context, headers map[string]string) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	md := metadata.New(headers)
	return metadata.NewOutgoingContext(ctx, md)
}

func mergeHeaders(fallback map[string]string, header *jsonval.Object) map[string]string {
	out := map[string]string{}
	for k, v := range fallback {
		out[k] = v
	}
	if header != nil {
		for _, k := range header.Keys() {
			v, _ := header.Get(k)
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}
