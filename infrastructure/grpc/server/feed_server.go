package server

import (
	"context"
	"log/slog"

	"public-feed/contract"
	"public-feed/domain"
	"public-feed/errors"
	pb "public-feed/proto/feedpb"
	"public-feed/services"
)

type FeedServer struct {
	pb.UnimplementedFeedServiceServer
	feedService services.IFeedService
	limiter     *PeerLimiter
	log         *slog.Logger
}

// NewFeedServer builds the gRPC facade. Submissions are throttled per remote
// host, a nil limiter accepts every submission.
func NewFeedServer(log *slog.Logger, feedService services.IFeedService, limiter *PeerLimiter) *FeedServer {
	return &FeedServer{feedService: feedService, limiter: limiter, log: log}
}

func (s *FeedServer) Submit(ctx context.Context, req *pb.SubmitRequest) (*pb.SubmitResponse, error) {
	if s.limiter != nil && !s.limiter.Allow(ctx) {
		return nil, errors.MapToGRPCError(errors.ErrRateLimited)
	}
	submission := domain.Submission{
		Author: req.Author,
		Body:   req.Body,
		Token:  req.Token,
	}
	if len(req.Image) > 0 {
		submission.Image = &domain.RawImage{Data: req.Image, ContentType: req.ImageType}
	}
	message, err := s.feedService.Submit(ctx, submission)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &pb.SubmitResponse{Message: pb.FromDomainMessage(message)}, nil
}

func (s *FeedServer) GetFeed(ctx context.Context, _ *pb.GetFeedRequest) (*pb.GetFeedResponse, error) {
	e, err := s.feedService.GetFeed(ctx)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &pb.GetFeedResponse{Messages: pb.FromDomainMessages(e.Messages)}, nil
}

// Subscribe streams the full window every time it changes, starting with
// the current one. It blocks until the client goes away.
func (s *FeedServer) Subscribe(_ *pb.SubscribeRequest, stream pb.FeedService_SubscribeServer) error {
	ctx := stream.Context()
	events := newStreamSink()
	unsubscribe, err := s.feedService.Subscribe(ctx, events)
	if err != nil {
		return errors.MapToGRPCError(err)
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("Feed subscriber disconnected")
			return nil
		case e := <-events.ch:
			if err := stream.Send(pb.FromDomainEvent(e)); err != nil {
				s.log.Error("failed to push feed event to stream", "seq", e.Seq, "error", err)
				return err
			}
		}
	}
}

func (s *FeedServer) GetMedia(ctx context.Context, req *pb.GetMediaRequest) (*pb.GetMediaResponse, error) {
	data, contentType, err := s.feedService.GetMedia(ctx, req.Locator)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &pb.GetMediaResponse{Data: data, ContentType: contentType}, nil
}

func (s *FeedServer) Sweep(ctx context.Context, _ *pb.SweepRequest) (*pb.SweepResponse, error) {
	removed, err := s.feedService.Sweep(ctx)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &pb.SweepResponse{Removed: int64(removed)}, nil
}

func (s *FeedServer) Delete(ctx context.Context, req *pb.DeleteRequest) (*pb.DeleteResponse, error) {
	if err := s.feedService.Delete(ctx, req.Id); err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &pb.DeleteResponse{}, nil
}

// streamSink hands events over to the stream handler. Consume blocks until
// the handler takes the event, the synchronizer coalesces behind it.
type streamSink struct {
	ch chan domain.FeedEvent
}

func newStreamSink() *streamSink {
	return &streamSink{ch: make(chan domain.FeedEvent)}
}

func (s *streamSink) Consume(ctx context.Context, e domain.FeedEvent) error {
	select {
	case s.ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	_ pb.FeedServiceServer = (*FeedServer)(nil)
	_ contract.EventSink   = (*streamSink)(nil)
)
