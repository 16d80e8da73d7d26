package grpcgw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kholikovA/ielts-wiz-sub001/internal/client/gateway"
	"github.com/kholikovA/ielts-wiz-sub001/internal/client/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// AccessTokenHeaderName is the metadata key carrying the access token.
const AccessTokenHeaderName = "access_token"

// TokenExpiredMessage is the status message of an Unauthenticated error
// asking the client to refresh its token.
const TokenExpiredMessage = "token expired"

var publicMethods = map[string]bool{
	MethodSignIn:                         true,
	MethodSignUp:                         true,
	MethodRefresh:                        true,
	healthpb.Health_Check_FullMethodName: true,
}

// ToStruct converts v to a Struct through its JSON form. Nil gives an empty
// Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	st := &structpb.Struct{}
	if v == nil {
		return st, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	if err := protojson.Unmarshal(b, st); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return st, nil
}

// FromStruct decodes st into out through its JSON form.
func FromStruct(st *structpb.Struct, out any) error {
	b, err := protojson.Marshal(st)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Gateway) call(ctx context.Context, method string, in, out any) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	req, err := ToStruct(in)
	if err != nil {
		return err
	}
	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, method, req, resp); err != nil {
		return mapError(err)
	}
	if out == nil {
		return nil
	}
	if err := FromStruct(resp, out); err != nil {
		return gateway.WrapError(gateway.ErrUnavailable, "malformed reply", err)
	}
	return nil
}

// refresh exchanges old's refresh token. It goes through the interceptor as a
// public method.
func (g *Gateway) refresh(ctx context.Context, old models.TokenHandle) (models.TokenHandle, *models.Session, error) {
	var r tokenReply
	if err := g.call(ctx, MethodRefresh, map[string]string{"refresh_token": old.RefreshToken}, &r); err != nil {
		return models.TokenHandle{}, nil, err
	}
	h := g.handleOf(r)
	s, err := gateway.SessionFromToken(h)
	if err != nil {
		return models.TokenHandle{}, nil, gateway.WrapError(gateway.ErrUnavailable, "malformed access token", err)
	}
	return h, s, nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

// accessTokenInterceptor attaches the access token to every non-public call.
// When the service answers that the token expired, it refreshes once and
// retries.
func (g *Gateway) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if publicMethods[method] {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	h, err := g.tokens.Valid(ctx, g.refresh)
	if err != nil {
		return err
	}
	if h == nil {
		return gateway.NewError(gateway.ErrUnauthorized, "not signed in")
	}

	err = invoker(withAccessToken(ctx, h.AccessToken), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != TokenExpiredMessage {
		return err
	}

	h, err = g.tokens.Refresh(ctx, *h, g.refresh)
	if err != nil {
		return err
	}
	return invoker(withAccessToken(ctx, h.AccessToken), method, req, reply, cc, opts...)
}

// mapError turns a status error into a gateway error keeping the status
// message. Gateway errors pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return gateway.WrapError(gateway.ErrUnavailable, "", err)
	}

	var kind error
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		kind = gateway.ErrUnauthorized
	case codes.NotFound:
		kind = gateway.ErrNotFound
	case codes.ResourceExhausted:
		kind = gateway.ErrRateLimited
	case codes.InvalidArgument, codes.AlreadyExists, codes.FailedPrecondition, codes.OutOfRange:
		kind = gateway.ErrRejected
	default:
		kind = gateway.ErrUnavailable
	}
	return gateway.WrapError(kind, st.Message(), err)
}
