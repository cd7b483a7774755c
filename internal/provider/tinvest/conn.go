// Package tinvest implements the provider interfaces on top of the T-Invest API.
package tinvest

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/russianinvestments/invest-api-go-sdk/investgo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

type tokenAuth struct {
	token   string
	appName string
}

func (t tokenAuth) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	md := map[string]string{"authorization": "Bearer " + t.token}
	if t.appName != "" {
		md["x-app-name"] = t.appName
	}
	return md, nil
}

func (tokenAuth) RequireTransportSecurity() bool {
	return true
}

// Dial opens the connection used for candle streams. The SDK client keeps its
// own connection for unary calls.
func Dial(cfg investgo.Config) (*grpc.ClientConn, error) {
	if cfg.EndPoint == "" {
		return nil, fmt.Errorf("empty invest api endpoint")
	}

	conn, err := grpc.NewClient(cfg.EndPoint,
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})),
		grpc.WithPerRPCCredentials(tokenAuth{token: cfg.Token, appName: cfg.AppName}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: can't dial %s", err, cfg.EndPoint)
	}

	return conn, nil
}
