// Package service runs a conversion request end to end: validate, extract,
// debit the daily quota, emit artifacts and announce the completion.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/docconv/internal/convert"
	"github.com/iliyamo/docconv/internal/ledger"
	"github.com/iliyamo/docconv/internal/logging"
	"github.com/iliyamo/docconv/internal/plan"
	q "github.com/iliyamo/docconv/internal/queue"
)

// DefaultMaxBytes bounds an upload when no explicit limit is configured.
const DefaultMaxBytes int64 = 20 << 20

const publishTimeout = 5 * time.Second

// Extractor is the conversion engine as seen by the orchestrator.
type Extractor interface {
	Accepts(filename string) bool
	Extract(ctx context.Context, data []byte) (convert.Extraction, error)
	ToDocx(text string) ([]byte, error)
}

// Quota is the usage ledger as seen by the orchestrator.
type Quota interface {
	TryReserve(ctx context.Context, userID int64, pages int) (ledger.Reservation, error)
	Status(ctx context.Context, userID int64) (ledger.Status, error)
	SetPlan(ctx context.Context, userID int64, raw string) (plan.ID, error)
}

// Reason classifies a rejected submission.
type Reason string

const (
	ReasonTooLarge          Reason = "TOO_LARGE"
	ReasonUnsupportedType   Reason = "UNSUPPORTED_TYPE"
	ReasonUnreadable        Reason = "UNREADABLE"
	ReasonNoExtractableText Reason = "NO_EXTRACTABLE_TEXT"
	ReasonQuotaExceeded     Reason = "QUOTA_EXCEEDED"
)

// Result is either completed (Completed true, Text set, Docx set when the
// plan grants it) or rejected (Reason set).  Used and Limit are filled for
// quota outcomes in both cases.
type Result struct {
	Completed    bool
	JobID        string
	Text         string
	Docx         []byte
	Partial      bool  // DOCX was due but could not be built
	SecondaryErr error // cause when Partial
	Pages        int
	Plan         plan.ID

	Reason Reason
	Detail string

	Used  int
	Limit int
}

// Err returns the sentinel for a rejected Result and nil otherwise.
func (r Result) Err() error {
	switch r.Reason {
	case ReasonTooLarge:
		return ErrTooLarge
	case ReasonUnsupportedType:
		return ErrUnsupportedType
	case ReasonUnreadable:
		return ErrUnreadable
	case ReasonNoExtractableText:
		return ErrNoExtractableText
	case ReasonQuotaExceeded:
		return ErrQuotaExceeded
	}
	return nil
}

func rejected(reason Reason, detail string) Result {
	return Result{Reason: reason, Detail: detail}
}

// Converter is safe for concurrent use.  It holds no lock of its own;
// parsing happens before and outside the ledger's per-user critical section.
type Converter struct {
	engine    Extractor
	quota     Quota
	plans     *plan.Registry
	maxBytes  int64
	publisher Publisher
	log       *logging.Logger
	now       func() time.Time

	inflight sync.WaitGroup
}

// Option configures a Converter.
type Option func(*Converter)

// WithMaxBytes sets the upload size limit.  Non-positive values are ignored.
func WithMaxBytes(n int64) Option {
	return func(c *Converter) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithPublisher sets where completion events go.
func WithPublisher(p Publisher) Option { return func(c *Converter) { c.publisher = p } }

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option { return func(c *Converter) { c.log = l } }

// WithClock overrides the clock used for event timestamps.
func WithClock(now func() time.Time) Option { return func(c *Converter) { c.now = now } }

// NewConverter wires an orchestrator over engine and quota.
func NewConverter(engine Extractor, quota Quota, plans *plan.Registry, opts ...Option) *Converter {
	c := &Converter{
		engine:    engine,
		quota:     quota,
		plans:     plans,
		maxBytes:  DefaultMaxBytes,
		publisher: nopPublisher{},
		log:       logging.Nop(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// MaxBytes reports the configured upload limit.
func (c *Converter) MaxBytes() int64 { return c.maxBytes }

// Submit converts data for userID.  Rejections come back as a Result with a
// nil error; a non-nil error means the outcome is unknown (storage failure
// wrapping ledger.ErrStorageUnavailable, or ctx cancellation) and nothing was
// delivered.  Pages are only debited once extraction produced text, and the
// debit is the last step that can fail the request.
func (c *Converter) Submit(ctx context.Context, userID int64, filename string, data []byte) (Result, error) {
	log := c.log.WithUser(userID).WithOperation("submit")

	if int64(len(data)) > c.maxBytes {
		log.Info().Int("bytes", len(data)).Int64("max_bytes", c.maxBytes).Msg("rejected: too large")
		return rejected(ReasonTooLarge, fmt.Sprintf("document is %d bytes; the limit is %d", len(data), c.maxBytes)), nil
	}
	if !c.engine.Accepts(filename) {
		log.Info().Str("filename", filename).Msg("rejected: unsupported type")
		return rejected(ReasonUnsupportedType, "only PDF documents are accepted"), nil
	}

	ext, err := c.engine.Extract(ctx, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		log.Info().Err(err).Str("filename", filename).Msg("rejected: unreadable")
		return rejected(ReasonUnreadable, "the document could not be read"), nil
	}
	if strings.TrimSpace(ext.Text) == "" {
		log.Info().Int("pages", ext.PageCount).Msg("rejected: no extractable text")
		r := rejected(ReasonNoExtractableText, "the document contains no extractable text")
		r.Pages = ext.PageCount
		return r, nil
	}

	res, err := c.quota.TryReserve(ctx, userID, ext.PageCount)
	if err != nil {
		log.Error().Err(err).Int("pages", ext.PageCount).Msg("quota reservation failed")
		return Result{}, err
	}
	if !res.Reserved {
		r := rejected(ReasonQuotaExceeded, fmt.Sprintf(
			"%d pages requested; %d of %d pages already used today", ext.PageCount, res.Used, res.Limit))
		r.Pages, r.Used, r.Limit, r.Plan = ext.PageCount, res.Used, res.Limit, res.Plan
		return r, nil
	}

	out := Result{
		Completed: true,
		JobID:     uuid.NewString(),
		Text:      ext.Text,
		Pages:     ext.PageCount,
		Plan:      res.Plan,
		Used:      res.Used,
		Limit:     res.Limit,
	}
	if c.plans.SecondaryFormatAllowed(res.Plan) {
		doc, err := c.engine.ToDocx(ext.Text)
		if err != nil {
			log.Warn().Err(err).Msg("docx build failed; delivering text only")
			out.Partial, out.SecondaryErr = true, err
		} else {
			out.Docx = doc
		}
	}
	log.Info().Str("job_id", out.JobID).Int("pages", out.Pages).Int("used", out.Used).Int("limit", out.Limit).
		Bool("docx", out.Docx != nil).Msg("conversion completed")

	c.announce(ctx, userID, filename, res, out)
	return out, nil
}

// announce publishes the completion event in the background.  The request
// context only contributes values; cancellation of the request does not
// abort the publish.
func (c *Converter) announce(ctx context.Context, userID int64, filename string, res ledger.Reservation, out Result) {
	ev := q.ConversionCompletedEvent{
		JobID:       out.JobID,
		UserID:      userID,
		Plan:        string(out.Plan),
		Filename:    filename,
		Pages:       out.Pages,
		UsedToday:   res.Used,
		Limit:       res.Limit,
		Day:         res.Day,
		Docx:        out.Docx != nil,
		Partial:     out.Partial,
		CompletedAt: c.now().UTC(),
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := c.publisher.PublishConversionCompleted(pctx, ev); err != nil {
			c.log.Warn().Err(err).Str("job_id", ev.JobID).Msg("publish conversion event failed")
		}
	}()
}

// Wait blocks until pending completion events have been handed to the
// publisher.
func (c *Converter) Wait() { c.inflight.Wait() }

// Status returns the user's plan and today's usage.
func (c *Converter) Status(ctx context.Context, userID int64) (ledger.Status, error) {
	return c.quota.Status(ctx, userID)
}

// SetPlan assigns a plan by name.  Unknown names fail with
// plan.ErrInvalidPlan and write nothing.
func (c *Converter) SetPlan(ctx context.Context, userID int64, raw string) (plan.ID, error) {
	return c.quota.SetPlan(ctx, userID, raw)
}
