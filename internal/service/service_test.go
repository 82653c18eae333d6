package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fairtest/fairtest-backend/internal/dedup"
	"github.com/fairtest/fairtest-backend/internal/evaluation"
	"github.com/fairtest/fairtest-backend/internal/identity"
	"github.com/fairtest/fairtest-backend/internal/ledger"
	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/fairtest/fairtest-backend/internal/submission"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const testWallet = "0x52908400098527886E0F7030069857D2E4169EE7"

const questionsJSON = `[
	{"id":"q1","type":"single_choice","marks":4,"negative_marks":1,"options":["a","b","c"],"correct_answer":1},
	{"id":"q2","type":"free_text","marks":5,"max_words":50}
]`

// ─── Fakes ─────────────────────────────────────────────────────────────

type fakeQuestions struct {
	questions []evaluation.Question
}

func (f *fakeQuestions) Questions(_ context.Context, _ string) ([]evaluation.Question, error) {
	if f.questions == nil {
		return nil, ErrAnswerKeyMissing
	}
	return f.questions, nil
}

type fakeSubmissions struct {
	mu       sync.Mutex
	created  []*model.Submission
	failures int // Create fails this many times first
}

func (f *fakeSubmissions) Create(_ context.Context, s *model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("db down")
	}
	s.ID = int64(len(f.created) + 1)
	s.SubmittedAt = time.Now()
	f.created = append(f.created, s)
	return nil
}

func (f *fakeSubmissions) GetLatest(_ context.Context, examID, pseudonymHash string) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.created) - 1; i >= 0; i-- {
		if s := f.created[i]; s.ExamID == examID && s.PseudonymHash == pseudonymHash {
			return s, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSubmissions) ListByExamPaginated(_ context.Context, examID string, limit, offset int) ([]model.Submission, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.Submission
	for _, s := range f.created {
		if s.ExamID == examID {
			all = append(all, *s)
		}
	}
	end := min(offset+limit, len(all))
	if offset > end {
		offset = end
	}
	return all[offset:end], len(all), nil
}

// fakeResults doubles as the result queue: enqueueing persists immediately.
type fakeResults struct {
	mu   sync.Mutex
	byPH map[string]evaluation.Result
}

func newFakeResults() *fakeResults {
	return &fakeResults{byPH: make(map[string]evaluation.Result)}
}

func (f *fakeResults) Enqueue(ctx context.Context, res *evaluation.Result) error {
	return f.Upsert(ctx, res)
}

func (f *fakeResults) Upsert(_ context.Context, res *evaluation.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byPH[res.ExamID+"/"+res.PseudonymHash] = *res
	return nil
}

func (f *fakeResults) Get(_ context.Context, examID, pseudonymHash string) (*evaluation.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.byPH[examID+"/"+pseudonymHash]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &res, nil
}

func (f *fakeResults) FindByPseudonym(_ context.Context, pseudonymHash string) (*evaluation.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, res := range f.byPH {
		if res.PseudonymHash == pseudonymHash {
			return &res, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeResults) ListByExam(_ context.Context, examID string) ([]evaluation.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []evaluation.Result
	for _, res := range f.byPH {
		if res.ExamID == examID {
			out = append(out, res)
		}
	}
	return out, nil
}

// flakyLedger fails the first n writes.
type flakyLedger struct {
	ledger.Store
	failures int
}

func (f *flakyLedger) WriteObject(ctx context.Context, kind ledger.Kind, fields any) (*ledger.Object, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection reset")
	}
	return f.Store.WriteObject(ctx, kind, fields)
}

// ─── Fixtures ──────────────────────────────────────────────────────────

type fixture struct {
	questions   *fakeQuestions
	submissions *fakeSubmissions
	results     *fakeResults
	ledger      ledger.Store
	submit      *SubmissionService
	eval        *EvaluationService
}

func newFixture(t *testing.T, ledgerStore ledger.Store) *fixture {
	t.Helper()
	var questions []evaluation.Question
	if err := json.Unmarshal([]byte(questionsJSON), &questions); err != nil {
		t.Fatalf("decode questions: %v", err)
	}
	if ledgerStore == nil {
		ledgerStore = ledger.NewMemoryStore()
	}
	detector, err := dedup.New(nil, 64, time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatalf("dedup.New: %v", err)
	}

	f := &fixture{
		questions:   &fakeQuestions{questions: questions},
		submissions: &fakeSubmissions{},
		results:     newFakeResults(),
		ledger:      ledgerStore,
	}
	evaluator := evaluation.New(evaluation.DefaultConfig())
	f.submit = NewSubmissionService(f.questions, f.submissions, ledgerStore, detector, evaluator, f.results, zerolog.Nop())
	f.eval = NewEvaluationService(f.results, f.submissions, ledgerStore, evaluator, zerolog.Nop())
	return f
}

func newPayload(t *testing.T, raw string) (*identity.Record, *submission.Payload, submission.Answers) {
	t.Helper()
	rec, err := identity.NewDeriver().Derive(testWallet, "exam-1")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	var answers submission.Answers
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		t.Fatalf("decode answers: %v", err)
	}
	p, err := submission.NewBuilder(nil).Build(rec.PseudonymHash, "exam-1", answers)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return rec, p, answers
}

// ─── Submission ────────────────────────────────────────────────────────

func TestSubmitGradesAndAnchorsPayload(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, p, answers := newPayload(t, `{"q1":1,"q2":"a short essay"}`)

	resp, err := f.submit.Submit(ctx, *p, answers)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Result.AutoScore != 4 || resp.Result.MaxScore != 9 {
		t.Fatalf("auto=%v max=%v, want 4/9", resp.Result.AutoScore, resp.Result.MaxScore)
	}
	if len(resp.Result.ManualGradingIDs) != 1 || resp.Result.ManualGradingIDs[0] != "q2" {
		t.Fatalf("manual ids = %v", resp.Result.ManualGradingIDs)
	}

	obj, err := f.ledger.ReadObject(ctx, resp.LedgerObjectID)
	if err != nil {
		t.Fatalf("ReadObject: %v", err)
	}
	if obj.Kind != ledger.KindSubmission || obj.Key != p.PseudonymHash {
		t.Fatalf("object kind=%s key=%s", obj.Kind, obj.Key)
	}
	var stored submission.Payload
	if err := obj.Decode(&stored); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if stored != *p {
		t.Fatalf("ledger payload %+v != %+v", stored, *p)
	}

	if len(f.submissions.created) != 1 || f.submissions.created[0].LedgerObjectID != obj.ID {
		t.Fatalf("submission not stored with ledger id")
	}
	if _, err := f.results.Get(ctx, "exam-1", p.PseudonymHash); err != nil {
		t.Fatalf("result not queued: %v", err)
	}
}

func TestSubmitNeverWritesWalletToLedger(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec, p, answers := newPayload(t, `{"q1":0}`)

	resp, err := f.submit.Submit(ctx, *p, answers)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	obj, _ := f.ledger.ReadObject(ctx, resp.LedgerObjectID)
	for _, secret := range []string{rec.WalletAddress, rec.Pseudonym} {
		if obj.Key == secret {
			t.Fatalf("ledger key leaks a secret")
		}
		var fields any
		_ = json.Unmarshal(obj.Fields, &fields)
		raw, _ := json.Marshal(fields)
		if strings.Contains(string(raw), secret) {
			t.Fatalf("ledger fields leak %q", secret)
		}
	}
}

func TestSubmitRejectsDuplicate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, p, answers := newPayload(t, `{"q1":2}`)

	if _, err := f.submit.Submit(ctx, *p, answers); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := f.submit.Submit(ctx, *p, answers); !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("second Submit err = %v, want ErrDuplicateSubmission", err)
	}

	report, err := f.ledger.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.Objects != 1 || !report.Valid {
		t.Fatalf("report = %+v, want one valid object", report)
	}
}

func TestSubmitRejectsHashMismatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, p, _ := newPayload(t, `{"q1":1}`)

	tampered := submission.Answers{"q1": json.RawMessage(`0`)}
	if _, err := f.submit.Submit(ctx, *p, tampered); !errors.Is(err, submission.ErrAnswerHashMismatch) {
		t.Fatalf("err = %v, want ErrAnswerHashMismatch", err)
	}
	if report, _ := f.ledger.Verify(ctx); report.Objects != 0 {
		t.Fatalf("ledger has %d objects, want 0", report.Objects)
	}
}

func TestSubmitWithoutAnswerKeyCanBeRetried(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, p, answers := newPayload(t, `{"q1":1}`)

	loaded := f.questions.questions
	f.questions.questions = nil
	if _, err := f.submit.Submit(ctx, *p, answers); !errors.Is(err, ErrAnswerKeyMissing) {
		t.Fatalf("err = %v, want ErrAnswerKeyMissing", err)
	}

	f.questions.questions = loaded
	if _, err := f.submit.Submit(ctx, *p, answers); err != nil {
		t.Fatalf("retry after upload: %v", err)
	}
}

func TestSubmitReleasesDedupOnLedgerFailure(t *testing.T) {
	f := newFixture(t, &flakyLedger{Store: ledger.NewMemoryStore(), failures: 1})
	ctx := context.Background()
	_, p, answers := newPayload(t, `{"q1":1}`)

	if _, err := f.submit.Submit(ctx, *p, answers); !errors.Is(err, ErrLedgerUnavailable) {
		t.Fatalf("err = %v, want ErrLedgerUnavailable", err)
	}
	if _, err := f.submit.Submit(ctx, *p, answers); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestSubmitReleasesDedupOnStoreFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.submissions.failures = 1
	ctx := context.Background()
	_, p, answers := newPayload(t, `{"q1":1}`)

	if _, err := f.submit.Submit(ctx, *p, answers); err == nil {
		t.Fatal("expected first Submit to fail")
	}
	if _, err := f.submit.Submit(ctx, *p, answers); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(f.submissions.created) != 1 {
		t.Fatalf("stored submissions = %d, want 1", len(f.submissions.created))
	}
	if _, err := f.submit.Submit(ctx, *p, answers); !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("third Submit err = %v, want ErrDuplicateSubmission", err)
	}
}

// ─── Evaluation ────────────────────────────────────────────────────────

func TestManualGradesThenPublish(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, p1, a1 := newPayload(t, `{"q1":1,"q2":"first essay"}`)
	_, p2, a2 := newPayload(t, `{"q1":0,"q2":"second essay"}`)
	for _, s := range []struct {
		p *submission.Payload
		a submission.Answers
	}{{p1, a1}, {p2, a2}} {
		if _, err := f.submit.Submit(ctx, *s.p, s.a); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	pending, err := f.eval.GetPublishedResult(ctx, p1.PseudonymHash)
	if err != nil {
		t.Fatalf("GetPublishedResult before publish: %v", err)
	}
	if pending.Source != model.ResultSourcePending {
		t.Fatalf("source = %s, want pending", pending.Source)
	}

	merged, err := f.eval.ApplyManualGrades(ctx, "exam-1", p2.PseudonymHash, map[string]float64{"q2": 5})
	if err != nil {
		t.Fatalf("ApplyManualGrades: %v", err)
	}
	// q1 wrong with negative marking: -1 floored to 0, then +5 manual.
	if merged.TotalScore != 5 || merged.ManualGradesApplied != 1 {
		t.Fatalf("merged total=%v applied=%d", merged.TotalScore, merged.ManualGradesApplied)
	}
	if _, err := f.ledger.ReadByKey(ctx, ledger.KindEvaluation, p2.PseudonymHash); err != nil {
		t.Fatalf("merged evaluation not anchored: %v", err)
	}

	if _, err := f.eval.ApplyManualGrades(ctx, "exam-1", p1.PseudonymHash, map[string]float64{"q2": 6}); !errors.Is(err, evaluation.ErrInvalidGrade) {
		t.Fatalf("out-of-range grade err = %v", err)
	}

	pub, err := f.eval.Publish(ctx, "exam-1")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(pub.Leaderboard) != 2 || len(pub.LedgerIDs) != 2 {
		t.Fatalf("leaderboard = %d, ids = %d", len(pub.Leaderboard), len(pub.LedgerIDs))
	}
	if pub.Leaderboard[0].PseudonymHash != p2.PseudonymHash || pub.Leaderboard[0].Rank != 1 {
		t.Fatalf("rank 1 = %s", pub.Leaderboard[0].PseudonymHash)
	}

	got, err := f.eval.GetPublishedResult(ctx, p1.PseudonymHash)
	if err != nil {
		t.Fatalf("GetPublishedResult: %v", err)
	}
	if got.Source != model.ResultSourceLedger || got.Ranked.Rank != 2 || got.Ranked.TotalStudents != 2 {
		t.Fatalf("published = %+v", got)
	}

	report, _ := f.ledger.Verify(ctx)
	if !report.Valid || report.Objects != 5 {
		t.Fatalf("report = %+v, want 5 valid objects", report)
	}
}

func TestPublishWithoutResults(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.eval.Publish(context.Background(), "exam-empty"); !errors.Is(err, ErrNoResults) {
		t.Fatalf("err = %v, want ErrNoResults", err)
	}
}

func TestGetPublishedResultUnknown(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.eval.GetPublishedResult(context.Background(), "ff"); !errors.Is(err, ErrResultNotFound) {
		t.Fatalf("err = %v, want ErrResultNotFound", err)
	}
}

func TestListSubmissionsPaginates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, raw := range []string{`{"q1":0}`, `{"q1":1}`, `{"q1":2}`} {
		_, p, a := newPayload(t, raw)
		if _, err := f.submit.Submit(ctx, *p, a); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	subs, pg, err := f.eval.ListSubmissions(ctx, "exam-1", 2, 2)
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(subs) != 1 || pg.TotalItems != 3 || pg.TotalPages != 2 {
		t.Fatalf("subs=%d pagination=%+v", len(subs), pg)
	}
}
