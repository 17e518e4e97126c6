package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/chazu/sightline/pkg/scene"
)

// EvalTimeout is the hard limit for a single evaluation. It includes any
// tessellation the script asks for.
const EvalTimeout = 5 * time.Second

// evalResult passes an evaluation outcome through a channel.
type evalResult struct {
	doc    *scene.Document
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, but returns a timeout error
// if the evaluation exceeds EvalTimeout. It uses a generation counter to
// discard stale results from previous evaluations.
//
// On timeout, the goroutine may still be running; the generation check
// ensures its result is discarded when it eventually completes.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
) (*scene.Document, []EvalError, error) {
	timer := time.NewTimer(EvalTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			// A newer evaluation was started; discard this result.
			return nil, nil, fmt.Errorf("evaluation superseded by newer request")
		}

		return res.doc, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("scene evaluation timed out after %s", EvalTimeout)
	}
}
