// Package invoke is the handler side of the provisioning contract. A handler binary reads
// its typed configuration with FromEnv and routes proxy requests by method with a Mux:
//
//	cfg, err := invoke.FromEnv(os.LookupEnv)
//	mux := invoke.NewMux().
//		Handle(gateway.MethodGet, list(cfg)).
//		Handle(gateway.MethodPost, create(cfg))
//	lambda.Start(mux.Serve)
//
// Handlers that address one record build its key with RecordKey:
//
//	key, err := invoke.RecordKey(invoke.Table(cfg, "event-id"), req)
//
// The record logic behind each method is supplied by the handler author.
package invoke

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/Louis4933/CYFEAST-2023-BACK/compute"
	"github.com/Louis4933/CYFEAST-2023-BACK/gateway"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// FromEnv reads the configuration the provisioner injected.
func FromEnv(lookup LookupFunc) (compute.Config, error) {
	v, ok := lookup(compute.EnvTable)
	if !ok || strings.TrimSpace(v) == "" {
		return compute.Config{}, fmt.Errorf("environment variable %s is not set", compute.EnvTable)
	}
	return compute.Config{Table: v}, nil
}

type HandlerFunc func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Mux dispatches on the request's HTTP method. The four methods of a collection may share
// one entry point, so a single Mux can back all of them.
type Mux struct {
	handlers map[gateway.Method]HandlerFunc
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[gateway.Method]HandlerFunc)}
}

// Handle registers h for m, replacing any previous registration.
func (m *Mux) Handle(method gateway.Method, h HandlerFunc) *Mux {
	m.handlers[method] = h
	return m
}

// Serve has the signature lambda.Start expects.
func (m *Mux) Serve(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	method, err := gateway.ParseMethod(strings.ToUpper(req.HTTPMethod))
	if err != nil {
		return m.notAllowed(), nil
	}
	h, ok := m.handlers[method]
	if !ok {
		return m.notAllowed(), nil
	}
	return h(ctx, req)
}

func (m *Mux) notAllowed() events.APIGatewayProxyResponse {
	var allowed []string
	for _, method := range gateway.Methods() {
		if _, ok := m.handlers[method]; ok {
			allowed = append(allowed, string(method))
		}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusMethodNotAllowed,
		Headers:    map[string]string{"Allow": strings.Join(allowed, ", ")},
		Body:       http.StatusText(http.StatusMethodNotAllowed),
	}
}
