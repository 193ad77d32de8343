package cmd

import (
	"log"

	"github.com/quatton/qgate/pkg/qerr"
)

// exitIfSdkError inspects errors returned from the SDK and emits user-friendly
// guidance before exiting. Other errors fall back to log.Fatalf.
func exitIfSdkError(err error) {
	if err == nil {
		return
	}
	switch qerr.CodeOf(err) {
	case qerr.CodeUnauthorized:
		log.Fatalf("authentication required: run 'qgate login' (%v)", qerr.Message(err))
	case qerr.CodeNotSubmitted:
		log.Fatalf("job was never accepted by its compute resource (%v)", qerr.Message(err))
	case qerr.CodeNotConfigured:
		log.Fatalf("gateway is not configured for this: %v", qerr.Message(err))
	case qerr.CodeValidation, qerr.CodeNotFound:
		log.Fatalf("%v", qerr.Message(err))
	default:
		log.Fatalf("%v", err)
	}
}
