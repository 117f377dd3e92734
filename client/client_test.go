package client_test

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"public-feed/auth"
	"public-feed/client"
	"public-feed/contract"
	"public-feed/domain"
	"public-feed/errors"
	"public-feed/infrastructure/grpc/server"
	"public-feed/mocks"
	pb "public-feed/proto/feedpb"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

var secret = []byte("client-test-secret-for-admin-calls")

func connect(t *testing.T, service *mocks.MockIFeedService) *grpc.ClientConn {
	t.Helper()
	listener := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(
		grpc.ForceServerCodec(pb.Codec{}),
		grpc.ChainUnaryInterceptor(auth.AdminInterceptor(secret)),
	)
	pb.RegisterFeedServiceServer(srv, server.NewFeedServer(slog.Default(), service, nil))
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestClient_SubmitRestoresErrorKind(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	service := mocks.NewMockIFeedService(ctrl)
	c := client.New(connect(t, service))

	// Given a submission without author
	service.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(domain.Message{}, errors.ErrMissingAuthor)

	// When it is sent
	_, err := c.Submit(context.Background(), domain.Submission{Body: "hello"})

	// Then the sentinel and its user message survive the wire
	req.ErrorIs(err, errors.ErrMissingAuthor)
	req.Equal(errors.UserMessage(errors.ErrMissingAuthor), err.Error())
}

func TestClient_Feed(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	service := mocks.NewMockIFeedService(ctrl)
	c := client.New(connect(t, service))

	service.EXPECT().GetFeed(gomock.Any()).Return(domain.FeedEvent{
		Messages: []domain.Message{{ID: "m1", Author: "a"}, {ID: "m2", Author: "b"}},
	}, nil)

	messages, err := c.Feed(context.Background())

	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("m1", messages[0].ID)
}

func TestClient_WatchStopsWhenCallbackFails(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	service := mocks.NewMockIFeedService(ctrl)
	c := client.New(connect(t, service))
	done := errors.ErrNotFound

	service.EXPECT().Subscribe(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, sink contract.EventSink) (func(), error) {
			go func() {
				for seq := uint64(1); ctx.Err() == nil; seq++ {
					if sink.Consume(ctx, domain.FeedEvent{Seq: seq}) != nil {
						return
					}
				}
			}()
			return func() {}, nil
		})

	var seen []uint64
	err := c.Watch(context.Background(), func(e domain.FeedEvent) error {
		seen = append(seen, e.Seq)
		if len(seen) == 3 {
			return done
		}
		return nil
	})

	req.ErrorIs(err, done)
	req.Equal([]uint64{1, 2, 3}, seen)
}

func TestClient_AdminToken(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	service := mocks.NewMockIFeedService(ctrl)
	conn := connect(t, service)

	// Without a token the server refuses to sweep
	_, err := client.New(conn).Sweep(context.Background())
	req.Error(err)

	// With one it goes through
	token, err := auth.GenerateToken(secret, "feedctl", []string{auth.AdminRole}, time.Minute)
	req.NoError(err)
	service.EXPECT().Sweep(gomock.Any()).Return(2, nil)
	service.EXPECT().Delete(gomock.Any(), "m9").Return(errors.ErrNotFound)

	admin := client.New(conn, client.WithAdminToken(token))
	removed, err := admin.Sweep(context.Background())
	req.NoError(err)
	req.Equal(2, removed)
	req.ErrorIs(admin.Delete(context.Background(), "m9"), errors.ErrNotFound)
}
