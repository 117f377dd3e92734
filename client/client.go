// Package client is the Go client of the feed service, used by feedctl.
package client

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"public-feed/domain"
	"public-feed/errors"
	pb "public-feed/proto/feedpb"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

type Client struct {
	conn       *grpc.ClientConn
	api        pb.FeedServiceClient
	adminToken string
}

type Option func(*Client)

// WithAdminToken attaches a bearer token to the admin calls.
func WithAdminToken(token string) Option {
	return func(c *Client) { c.adminToken = token }
}

// Dial opens a plaintext connection to address.
func Dial(address string, opts ...Option) (*Client, error) {
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("could not connect to server at %s: %w", address, err)
	}
	c := New(conn, opts...)
	c.conn = conn
	return c, nil
}

// New wraps an existing connection, which the caller keeps ownership of.
func New(cc grpc.ClientConnInterface, opts ...Option) *Client {
	c := &Client{api: pb.NewFeedServiceClient(cc)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Errors returned by the server are restored to their sentinel, use
// errors.UserMessage to render them.
func (c *Client) Submit(ctx context.Context, submission domain.Submission) (domain.Message, error) {
	in := &pb.SubmitRequest{Author: submission.Author, Body: submission.Body, Token: submission.Token}
	if submission.HasImage() {
		in.Image = submission.Image.Data
		in.ImageType = submission.Image.ContentType
	}
	resp, err := c.api.Submit(ctx, in)
	if err != nil {
		return domain.Message{}, errors.FromGRPCError(err)
	}
	return resp.Message.ToDomain(), nil
}

// Feed returns the current window, oldest first.
func (c *Client) Feed(ctx context.Context) ([]domain.Message, error) {
	resp, err := c.api.GetFeed(ctx, &pb.GetFeedRequest{})
	if err != nil {
		return nil, errors.FromGRPCError(err)
	}
	return pb.ToDomainMessages(resp.Messages), nil
}

// Watch calls fn with every window until ctx is done, the server ends the
// stream or fn fails.
func (c *Client) Watch(ctx context.Context, fn func(domain.FeedEvent) error) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream, err := c.api.Subscribe(streamCtx, &pb.SubscribeRequest{})
	if err != nil {
		return errors.FromGRPCError(err)
	}
	for {
		e, err := stream.Recv()
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.FromGRPCError(err)
		}
		if err := fn(e.ToDomain()); err != nil {
			return err
		}
	}
}

func (c *Client) Media(ctx context.Context, locator string) ([]byte, string, error) {
	resp, err := c.api.GetMedia(ctx, &pb.GetMediaRequest{Locator: locator})
	if err != nil {
		return nil, "", errors.FromGRPCError(err)
	}
	return resp.Data, resp.ContentType, nil
}

func (c *Client) Sweep(ctx context.Context) (int, error) {
	resp, err := c.api.Sweep(c.admin(ctx), &pb.SweepRequest{})
	if err != nil {
		return 0, errors.FromGRPCError(err)
	}
	return int(resp.Removed), nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	if _, err := c.api.Delete(c.admin(ctx), &pb.DeleteRequest{Id: id}); err != nil {
		return errors.FromGRPCError(err)
	}
	return nil
}

func (c *Client) admin(ctx context.Context) context.Context {
	if c.adminToken == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.adminToken)
}
