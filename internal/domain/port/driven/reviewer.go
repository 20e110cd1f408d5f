package driven

import (
	"context"

	"github.com/ericfisherdev/reviewhook/internal/domain/model"
)

// Reviewer is the driven port for the external review-suggestion service.
// Implementations must treat unparsable service output as an empty finding
// set with a nil error; transport failures are returned and isolated per
// file by the pipeline.
type Reviewer interface {
	ReviewPatch(ctx context.Context, filename, patch string) ([]model.Finding, error)
}
