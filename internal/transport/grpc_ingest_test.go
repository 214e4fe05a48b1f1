package transport

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"fleetmon-server/internal/model"
)

func testGRPCIngest(token string) *GRPCIngest {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGRPCIngest(
		"127.0.0.1:0", nil, token,
		"/fleetmon.monitoring.v1.MonitoringService/StreamNodeTelemetry",
		"/fleetmon.monitoring.v1.MonitoringService/StreamContainerInventory",
		make(chan model.NodeTelemetry, 1),
		make(chan model.ContainerList, 1),
		logger,
	)
}

func TestAuthorizeWithoutTokenConfigured(t *testing.T) {
	i := testGRPCIngest("")
	assert.NoError(t, i.authorize(context.Background()))
}

func TestAuthorizeBearerToken(t *testing.T) {
	i := testGRPCIngest("sekrit")

	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs("authorization", "Bearer sekrit"))
	assert.NoError(t, i.authorize(ctx))

	ctx = metadata.NewIncomingContext(context.Background(),
		metadata.Pairs("authorization", "Bearer wrong"))
	err := i.authorize(ctx)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	err = i.authorize(context.Background())
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	assert.Equal(t, "json", c.Name())

	in := model.TelemetryFrame{NodeName: "n1", Sample: model.NodeTelemetry{NodeName: "n1", IP: "10.0.0.3"}}
	data, err := c.Marshal(in)
	assert.NoError(t, err)

	var out model.TelemetryFrame
	assert.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
