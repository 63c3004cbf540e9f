package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/replykit/internal/assist"
	"github.com/matheus3301/replykit/internal/chatdb"
	"github.com/matheus3301/replykit/internal/store"
)

// toStatus maps domain errors onto gRPC codes.
func toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	code := codes.Internal
	switch {
	case errors.Is(err, chatdb.ErrUnavailable):
		code = codes.FailedPrecondition
	case errors.Is(err, assist.ErrGenerationFailed):
		code = codes.Unavailable
	case errors.Is(err, assist.ErrInvalidInput), errors.Is(err, store.ErrInvalid):
		code = codes.InvalidArgument
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	return grpcstatus.Errorf(code, "%s: %v", op, err)
}
