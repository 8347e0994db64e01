package collab

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/mission-cli/internal/resilience"
	"github.com/sells-group/mission-cli/pkg/anthropic"
	"github.com/sells-group/mission-cli/pkg/perplexity"
)

// classify wraps a client error, marking retryable HTTP statuses as
// transient so the batch caller retries them and treats 429 as soft.
func classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	code := perplexity.StatusCode(err)
	if code == 0 {
		code = anthropic.StatusCode(err)
	}
	wrapped := eris.Wrap(err, msg)
	if code != 0 && resilience.IsTransientStatus(code) {
		return resilience.NewTransientError(wrapped, code)
	}
	return wrapped
}
