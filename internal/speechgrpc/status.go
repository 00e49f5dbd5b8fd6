package speechgrpc

import (
	"context"
	"errors"

	"github.com/rbright/hark/internal/recognizer"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// codeForError translates a session failure into the recognizer taxonomy.
func codeForError(err error) recognizer.Code {
	switch {
	case err == nil:
		return recognizer.CodeClient
	case errors.Is(err, errTimedOut), errors.Is(err, context.DeadlineExceeded):
		return recognizer.CodeNetworkTimeout
	case errors.Is(err, context.Canceled):
		return recognizer.CodeClient
	}

	st, ok := status.FromError(err)
	if !ok {
		return recognizer.CodeNetwork
	}
	return codeForStatus(st.Code())
}

// codeForStatus maps gRPC status codes to recognizer codes.
func codeForStatus(code codes.Code) recognizer.Code {
	switch code {
	case codes.DeadlineExceeded:
		return recognizer.CodeNetworkTimeout
	case codes.Unavailable:
		return recognizer.CodeNetwork
	case codes.Unauthenticated, codes.PermissionDenied:
		return recognizer.CodeInsufficientPermissions
	case codes.ResourceExhausted:
		return recognizer.CodeRecognizerBusy
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange,
		codes.NotFound, codes.Unimplemented, codes.Canceled:
		return recognizer.CodeClient
	default:
		return recognizer.CodeServer
	}
}
