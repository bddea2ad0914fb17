package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trinetra/internal/storage"
	"trinetra/pkg/types"

	"github.com/sirupsen/logrus"
)

// Report is the input to a Renderer. Exactly one of AVF or BGV is set.
type Report struct {
	Link        *types.FormLink
	AVF         *types.AVFResponse
	BGV         *types.BGVForm
	GeneratedAt time.Time
	// Attempt tells concurrent submissions for one token apart in storage.
	Attempt string
}

func (r *Report) FormType() types.FormType {
	if r.BGV != nil {
		return types.FormTypeBGV
	}
	return types.FormTypeAVF
}

// Candidate returns the best known candidate name for the report.
func (r *Report) Candidate() string {
	if r.BGV != nil && r.BGV.FullName() != "" {
		return r.BGV.FullName()
	}
	if r.Link != nil && r.Link.Candidate() != "" {
		return r.Link.Candidate()
	}
	return "candidate"
}

// Filename is <candidate>_<formtype>_<token>.pdf with the candidate reduced to
// safe characters.
func (r *Report) Filename() string {
	name := strings.ToLower(storage.SafeName(strings.ReplaceAll(r.Candidate(), " ", "_")))
	token := ""
	if r.Link != nil {
		token = "_" + r.Link.Token
	}
	return fmt.Sprintf("%s_%s%s.pdf", name, strings.ToLower(string(r.FormType())), token)
}

// Key is the storage key. It carries the attempt so a submission that loses
// the race for a token only ever removes its own file.
func (r *Report) Key() string {
	name := r.Filename()
	if r.Attempt == "" {
		return "reports/" + name
	}
	return "reports/" + strings.TrimSuffix(name, ".pdf") + "_" + r.Attempt + ".pdf"
}

type Renderer interface {
	Render(ctx context.Context, r *Report) ([]byte, error)
}

var ErrRenderTimeout = errors.New("report rendering timed out")

// Guarded bounds each render by Timeout and retries a failed render Retries
// times. A final failure is reported as *types.UpstreamError.
type Guarded struct {
	Next    Renderer
	Timeout time.Duration
	Retries int
	Logger  *logrus.Logger
}

func NewGuarded(next Renderer, timeout time.Duration, logger *logrus.Logger) *Guarded {
	return &Guarded{Next: next, Timeout: timeout, Retries: 1, Logger: logger}
}

func (g *Guarded) Render(ctx context.Context, r *Report) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= g.Retries; attempt++ {
		out, err := g.once(ctx, r)
		if err == nil {
			return out, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}

		if g.Logger != nil {
			g.Logger.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"report":  r.Filename(),
			}).Warn("report render failed")
		}
	}

	return nil, &types.UpstreamError{Service: "report renderer", Err: lastErr}
}

type renderResult struct {
	out []byte
	err error
}

func (g *Guarded) once(ctx context.Context, r *Report) ([]byte, error) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	done := make(chan renderResult, 1)
	go func() {
		out, err := g.Next.Render(ctx, r)
		done <- renderResult{out: out, err: err}
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrRenderTimeout
		}
		return nil, ctx.Err()
	}
}
