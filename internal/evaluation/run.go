package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dataset-eval/backend/internal/checks"
	"github.com/dataset-eval/backend/internal/dataset"
	"github.com/dataset-eval/backend/internal/metrics"
)

var (
	ErrNilDataset        = errors.New("evaluation: nil dataset")
	ErrInvalidTransition = errors.New("evaluation: invalid state transition")
	ErrInvalidThreshold  = errors.New("evaluation: threshold must be within [0,1]")
	// ErrChecksUnavailable means an inference check was requested but no
	// classifier catalog is configured.
	ErrChecksUnavailable = errors.New("evaluation: inference checks are not configured")
)

// Classifiers is the inference-backed check catalog.
type Classifiers interface {
	Relevance(ctx context.Context, message string) (checks.Relevance, error)
	ContainsPII(ctx context.Context, message string) (bool, error)
	ContainsBias(ctx context.Context, message string) (bool, error)
	Gender(ctx context.Context, name string) (checks.Gender, error)
}

type Options struct {
	QualityThreshold    float64
	ComplianceThreshold float64

	Relevance bool
	PII       bool
	Bias      bool

	// Workers bounds concurrent per-record classification. 1 processes
	// records one at a time in order.
	Workers int
	// Progress is called after each record has been flagged. Calls are
	// serialized.
	Progress func(done, total int)
}

func DefaultOptions() Options {
	return Options{
		QualityThreshold:    0.9,
		ComplianceThreshold: 0.95,
		Workers:             1,
	}
}

func (o Options) Validate() error {
	if o.QualityThreshold < 0 || o.QualityThreshold > 1 {
		return fmt.Errorf("%w: quality threshold %v", ErrInvalidThreshold, o.QualityThreshold)
	}
	if o.ComplianceThreshold < 0 || o.ComplianceThreshold > 1 {
		return fmt.Errorf("%w: compliance threshold %v", ErrInvalidThreshold, o.ComplianceThreshold)
	}
	return nil
}

func (o Options) inference() bool {
	return o.Relevance || o.PII || o.Bias
}

type State int

const (
	StateIdle State = iota
	StateLoaded
	StateFlagged
	StateScored
	StateVerdicted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StateFlagged:
		return "flagged"
	case StateScored:
		return "scored"
	case StateVerdicted:
		return "verdicted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Run is a single evaluation moving through Idle, Loaded, Flagged, Scored
// and Verdicted. Steps cannot be skipped or repeated.
type Run struct {
	opts    Options
	catalog Classifiers

	state   State
	ds      *dataset.Dataset
	scores  Scores
	verdict Verdict
}

func NewRun(catalog Classifiers, opts Options) (*Run, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.inference() && catalog == nil {
		return nil, ErrChecksUnavailable
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Run{opts: opts, catalog: catalog}, nil
}

func (r *Run) State() State {
	return r.state
}

func (r *Run) Dataset() *dataset.Dataset {
	return r.ds
}

func (r *Run) transition(from, to State) error {
	if r.state != from {
		return fmt.Errorf("%w: cannot move to %s from %s", ErrInvalidTransition, to, r.state)
	}
	r.state = to
	return nil
}

func (r *Run) Load(ds *dataset.Dataset) error {
	if ds == nil {
		return ErrNilDataset
	}
	if err := r.transition(StateIdle, StateLoaded); err != nil {
		return err
	}
	r.ds = ds
	return nil
}

// Flag computes every flag column. The dataset is only modified when all
// enabled checks completed; an authentication failure or cancellation leaves
// the run in Loaded.
func (r *Run) Flag(ctx context.Context) error {
	if r.state != StateLoaded {
		return fmt.Errorf("%w: cannot move to %s from %s", ErrInvalidTransition, StateFlagged, r.state)
	}

	columns, err := r.computeFlags(ctx)
	if err != nil {
		return err
	}
	for _, col := range columns {
		if err := r.ds.SetFlags(col.name, col.values); err != nil {
			return err
		}
		metrics.FlaggedRecords.WithLabelValues(col.name).Add(float64(r.ds.CountTrue(col.name)))
	}
	metrics.RecordsEvaluated.Add(float64(r.ds.Len()))

	return r.transition(StateLoaded, StateFlagged)
}

func (r *Run) Score() (Scores, error) {
	if r.state != StateFlagged {
		return Scores{}, fmt.Errorf("%w: cannot move to %s from %s", ErrInvalidTransition, StateScored, r.state)
	}

	scores, err := ComputeScores(r.ds)
	if err != nil {
		return Scores{}, err
	}
	metrics.Scores.WithLabelValues("quality").Observe(scores.QualityScore)
	metrics.Scores.WithLabelValues("compliance").Observe(scores.ComplianceScore)

	r.scores = scores
	return scores, r.transition(StateFlagged, StateScored)
}

func (r *Run) Decide() (Verdict, error) {
	if err := r.transition(StateScored, StateVerdicted); err != nil {
		return Verdict{}, err
	}
	r.verdict = Decide(r.ds, r.scores, r.opts)
	return r.verdict, nil
}

type column struct {
	name   string
	values []dataset.Flag
}

// inferred holds the per-record outcomes of the inference checks, indexed
// by record position.
type inferred struct {
	relevance    []dataset.Flag
	piiInference []dataset.Flag
	languageBias []dataset.Flag
	gender       []dataset.Flag
}

func (r *Run) computeFlags(ctx context.Context) ([]column, error) {
	records := r.ds.Records
	n := len(records)

	var inf inferred
	if r.opts.Relevance {
		inf.relevance = make([]dataset.Flag, n)
	}
	if r.opts.PII {
		inf.piiInference = make([]dataset.Flag, n)
	}
	if r.opts.Bias {
		inf.languageBias = make([]dataset.Flag, n)
		inf.gender = make([]dataset.Flag, n)
	}

	if err := r.classifyAll(ctx, records, &inf); err != nil {
		return nil, err
	}

	duplicate := make([]dataset.Flag, n)
	missingMessage := make([]dataset.Flag, n)
	missingName := make([]dataset.Flag, n)
	languageQuality := make([]dataset.Flag, n)

	// Null messages form one group of their own, so two or more nulls are
	// duplicates of each other.
	seen := make(map[string]int, n)
	nulls := 0
	for _, rec := range records {
		if rec.CustomerMessage == nil {
			nulls++
			continue
		}
		seen[*rec.CustomerMessage]++
	}
	for i, rec := range records {
		if rec.CustomerMessage == nil {
			duplicate[i] = dataset.Bool(nulls > 1)
		} else {
			duplicate[i] = dataset.Bool(seen[*rec.CustomerMessage] > 1)
		}
		missingMessage[i] = dataset.Bool(rec.CustomerMessage == nil)
		missingName[i] = dataset.Bool(rec.Name == nil)
		languageQuality[i] = dataset.Bool(checks.DetectLanguageQuality(rec.CustomerMessage))
	}

	var columns []column
	if r.opts.Relevance {
		columns = append(columns, column{dataset.FlagRelevance, inf.relevance})
	}
	columns = append(columns,
		column{dataset.FlagDuplicate, duplicate},
		column{dataset.FlagMissingMessage, missingMessage},
		column{dataset.FlagMissingName, missingName},
		column{dataset.FlagLanguageQuality, languageQuality},
	)

	if r.opts.PII {
		columns = append(columns, piiColumns(records, inf.piiInference)...)
	}
	if r.opts.Bias {
		columns = append(columns,
			column{dataset.FlagLanguageBias, inf.languageBias},
			column{dataset.FlagGenderBias, inf.gender},
		)
	}

	return columns, nil
}

func piiColumns(records []dataset.Record, inferredPII []dataset.Flag) []column {
	n := len(records)
	email := make([]dataset.Flag, n)
	ssn := make([]dataset.Flag, n)
	phone := make([]dataset.Flag, n)
	combined := make([]dataset.Flag, n)
	details := make([]dataset.Flag, n)

	for i, rec := range records {
		msg, contact := deref(rec.CustomerMessage), deref(rec.ContactInfo)

		e := checks.DetectEmail(msg) || checks.DetectEmail(contact)
		s := checks.DetectSSN(msg) || checks.DetectSSN(contact)
		p := checks.DetectPhone(msg) || checks.DetectPhone(contact)
		inf := inferredPII[i].IsTrue()

		email[i] = dataset.Bool(e)
		ssn[i] = dataset.Bool(s)
		phone[i] = dataset.Bool(p)
		combined[i] = dataset.Bool(e || s || p || inf)
		details[i] = dataset.Label(piiDetails(e, s, p, inf))
	}

	return []column{
		{dataset.FlagEmail, email},
		{dataset.FlagSSN, ssn},
		{dataset.FlagPhone, phone},
		{dataset.FlagPIIInference, inferredPII},
		{dataset.FlagPII, combined},
		{dataset.FlagPIIDetails, details},
	}
}

func piiDetails(email, ssn, phone, inferred bool) string {
	var found []string
	if email {
		found = append(found, "email")
	}
	if ssn {
		found = append(found, "ssn")
	}
	if phone {
		found = append(found, "phone")
	}
	if inferred {
		found = append(found, "inferred pii")
	}
	if len(found) == 0 {
		return "no pii"
	}
	return strings.Join(found, ", ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// classifyAll runs the inference checks on every record. Results are
// written by index so columns stay aligned with records whatever the
// completion order.
func (r *Run) classifyAll(ctx context.Context, records []dataset.Record, inf *inferred) error {
	total := len(records)

	var (
		mu   sync.Mutex
		done int
	)
	report := func() {
		if r.opts.Progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		r.opts.Progress(done, total)
	}

	if r.opts.Workers <= 1 {
		for i := range records {
			if err := r.classifyRecord(ctx, i, records[i], inf); err != nil {
				return err
			}
			report()
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i := range records {
		i := i
		g.Go(func() error {
			if err := r.classifyRecord(gctx, i, records[i], inf); err != nil {
				return err
			}
			report()
			return nil
		})
	}
	return g.Wait()
}

// classifyRecord fills slot i of each enabled inference column. Null inputs
// are never sent to a classifier.
func (r *Run) classifyRecord(ctx context.Context, i int, rec dataset.Record, inf *inferred) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := rec.CustomerMessage

	if inf.relevance != nil {
		inf.relevance[i] = dataset.Null()
		if msg != nil {
			rel, err := r.catalog.Relevance(ctx, *msg)
			if err != nil {
				return fmt.Errorf("relevance check on record %d: %w", i, err)
			}
			switch rel {
			case checks.Relevant:
				inf.relevance[i] = dataset.Bool(true)
			case checks.Irrelevant:
				inf.relevance[i] = dataset.Bool(false)
			}
		}
	}

	if inf.piiInference != nil {
		inf.piiInference[i] = dataset.Bool(false)
		if msg != nil {
			pii, err := r.catalog.ContainsPII(ctx, *msg)
			if err != nil {
				return fmt.Errorf("pii check on record %d: %w", i, err)
			}
			inf.piiInference[i] = dataset.Bool(pii)
		}
	}

	if inf.languageBias != nil {
		inf.languageBias[i] = dataset.Bool(false)
		if msg != nil {
			biased, err := r.catalog.ContainsBias(ctx, *msg)
			if err != nil {
				return fmt.Errorf("bias check on record %d: %w", i, err)
			}
			inf.languageBias[i] = dataset.Bool(biased)
		}

		inf.gender[i] = dataset.Label(string(checks.GenderUnknown))
		if rec.Name != nil {
			gender, err := r.catalog.Gender(ctx, *rec.Name)
			if err != nil {
				return fmt.Errorf("gender check on record %d: %w", i, err)
			}
			inf.gender[i] = dataset.Label(string(gender))
		}
	}

	return nil
}
