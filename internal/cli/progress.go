package cli

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/riverdex/jira-river/internal/indexer"
)

// reindexProgress renders progress for one `river reindex` run. The
// indexer doesn't stream a per-issue callback, so this shows an
// indeterminate spinner for the run's duration and prints a one-line
// summary from the final Result — the same progressbar.NewOptions /
// OptionSetDescription / OptionThrottle idiom the teacher's
// cli/progress.go uses for its (determinate) file and embedding bars.
type reindexProgress struct {
	quiet bool
	bar   *progressbar.ProgressBar
	stop  chan struct{}
	done  chan struct{}
}

func newReindexProgress(quiet bool) *reindexProgress {
	return &reindexProgress{quiet: quiet}
}

func (r *reindexProgress) start(projectKey string, mode indexer.Mode) {
	if r.quiet {
		return
	}
	r.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(fmt.Sprintf("Indexing %s (%s)", projectKey, mode)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.bar.Add(1)
			}
		}
	}()
}

func (r *reindexProgress) finish(res indexer.Result) {
	if r.quiet {
		return
	}
	if r.stop != nil {
		close(r.stop)
		<-r.done
	}
	if r.bar != nil {
		r.bar.Finish()
		fmt.Println()
	}

	switch {
	case res.Interrupted:
		fmt.Printf("%s: interrupted\n", res.ProjectKey)
	case !res.OK:
		fmt.Printf("%s: FAILED: %v\n", res.ProjectKey, res.Err)
	default:
		fmt.Printf("%s %s complete in %.1fs: %d updated, %d deleted\n",
			res.ProjectKey, res.Mode, res.Elapsed.Seconds(), res.Updated, res.Deleted)
	}
}
