package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/register-extractor/constants"
	"github.com/joseph-ayodele/register-extractor/internal/common"
	"github.com/joseph-ayodele/register-extractor/internal/extract"
	"github.com/joseph-ayodele/register-extractor/internal/ingest"
	"github.com/joseph-ayodele/register-extractor/internal/llm"
	"github.com/joseph-ayodele/register-extractor/internal/register"
)

type mockRecognizer struct{ mock.Mock }

func (m *mockRecognizer) Recognize(ctx context.Context, img llm.Image, instructions string) (string, error) {
	args := m.Called(ctx, img, instructions)
	return args.String(0), args.Error(1)
}

func named(name string) any {
	return mock.MatchedBy(func(img llm.Image) bool { return img.Name == name })
}

func page(t *testing.T, name string) ingest.Submission {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))))
	return ingest.NewSubmission(name, buf.Bytes())
}

func TestProcess_EmptyBatch(t *testing.T) {
	rec := &mockRecognizer{}
	res, err := NewProcessor(rec, nil).Process(context.Background(), nil)
	assert.True(t, errors.Is(err, common.ErrEmptyBatch))
	assert.Empty(t, res.Outcomes)
	assert.Empty(t, res.BatchID)
	rec.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_BatchIsolation(t *testing.T) {
	rec := &mockRecognizer{}
	rec.On("Recognize", mock.Anything, named("p1.png"), mock.Anything).
		Return(`[{"Name":"A1"},{"Name":"A2"}]`, nil)
	rec.On("Recognize", mock.Anything, named("p2.png"), mock.Anything).
		Return("", errors.New("deadline exceeded"))
	rec.On("Recognize", mock.Anything, named("p3.png"), mock.Anything).
		Return(`[{"Name":"C1"}]`, nil)

	res, err := NewProcessor(rec, nil).Process(context.Background(),
		[]ingest.Submission{page(t, "p1.png"), page(t, "p2.png"), page(t, "p3.png")})
	require.NoError(t, err)
	rec.AssertExpectations(t)

	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, constants.OutcomeOK, res.Outcomes[0].Status)
	assert.Equal(t, constants.OutcomeFailed, res.Outcomes[1].Status)
	assert.Equal(t, constants.OutcomeOK, res.Outcomes[2].Status)

	var ie *common.ImageError
	require.True(t, errors.As(res.Outcomes[1].Err, &ie))
	assert.Equal(t, "p2.png", ie.Source)
	assert.Equal(t, common.StageRecognize, ie.Stage)
	assert.True(t, errors.Is(res.Outcomes[1].Err, common.ErrRecognition))

	require.Equal(t, 3, res.Rows())
	var names, sources []string
	for _, r := range res.Table.Rows {
		names = append(names, r["Name"])
		sources = append(sources, r[constants.FieldSourceFile])
	}
	assert.Equal(t, []string{"A1", "A2", "C1"}, names)
	assert.Equal(t, []string{"p1.png", "p1.png", "p3.png"}, sources)

	assert.Equal(t, 2, res.Succeeded())
	assert.Equal(t, 1, res.Failed())
	assert.False(t, res.AllFailed())
	assert.NotEmpty(t, res.BatchID)
}

func TestProcess_UndecodableImageSkipsRecognition(t *testing.T) {
	rec := &mockRecognizer{}
	rec.On("Recognize", mock.Anything, named("ok.png"), mock.Anything).Return(`[{"Name":"A"}]`, nil)

	res, err := NewProcessor(rec, nil).Process(context.Background(), []ingest.Submission{
		ingest.NewSubmission("broken.jpg", []byte("not an image")),
		page(t, "ok.png"),
	})
	require.NoError(t, err)
	rec.AssertNumberOfCalls(t, "Recognize", 1)

	assert.Equal(t, constants.OutcomeFailed, res.Outcomes[0].Status)
	assert.True(t, errors.Is(res.Outcomes[0].Err, common.ErrInvalidImage))
	var ie *common.ImageError
	require.True(t, errors.As(res.Outcomes[0].Err, &ie))
	assert.Equal(t, common.StagePrepare, ie.Stage)

	require.Equal(t, 1, res.Rows())
	assert.Equal(t, "ok.png", res.Table.Rows[0][constants.FieldSourceFile])
}

func TestProcess_AllFailed(t *testing.T) {
	rec := &mockRecognizer{}
	rec.On("Recognize", mock.Anything, mock.Anything, mock.Anything).Return("", common.ErrRecognition)

	res, err := NewProcessor(rec, nil).Process(context.Background(), []ingest.Submission{page(t, "a.png"), page(t, "b.png")})
	require.NoError(t, err)
	assert.True(t, res.AllFailed())
	assert.Equal(t, 0, res.Rows())
	assert.Equal(t, constants.CanonicalFields(), res.Table.Columns[:len(constants.CanonicalFields())])
}

func TestProcessImage_UnparsableResponseIsEmpty(t *testing.T) {
	rec := &mockRecognizer{}
	rec.On("Recognize", mock.Anything, mock.Anything, mock.Anything).Return("I could not read this page.", nil)

	out := NewProcessor(rec, nil).ProcessImage(context.Background(), page(t, "blurry.png"))
	assert.Equal(t, constants.OutcomeEmpty, out.Status)
	assert.NoError(t, out.Err)
	assert.Empty(t, out.Records)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, extract.KindUnparsable, out.Diagnostics[0].Kind)
}

func TestProcessImage_NormalizesRecords(t *testing.T) {
	rec := &mockRecognizer{}
	rec.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return("Sure!\n"+`[{"Date":"2/3","Name":"Sanjana Devi","Age":"4O","Mobile No":"98I2"}]`+"\nDone", nil)

	out := NewProcessor(rec, nil).ProcessImage(context.Background(), page(t, "p.png"))
	require.Equal(t, constants.OutcomeOK, out.Status)
	assert.Equal(t, "bracket", out.Strategy)
	require.Len(t, out.Records, 1)
	r := out.Records[0]
	assert.Equal(t, "Ranjana Devi", r["Name"])
	assert.Equal(t, "40", r["Age"])
	assert.Equal(t, "9812", r["Mobile No"])
	assert.Equal(t, constants.NA, r["Amount"])
}

func TestProcess_CancelledBatchSkipsRemaining(t *testing.T) {
	rec := &mockRecognizer{}
	rec.On("Recognize", mock.Anything, mock.Anything, mock.Anything).Return(`[{"Name":"A"}]`, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []int
	p := NewProcessor(rec, nil, WithProgress(func(done, total int, out Outcome) {
		seen = append(seen, done)
		assert.Equal(t, 3, total)
		if done == 1 {
			cancel()
		}
	}))

	res, err := p.Process(ctx, []ingest.Submission{page(t, "a.png"), page(t, "b.png"), page(t, "c.png")})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, constants.OutcomeOK, res.Outcomes[0].Status)
	assert.Equal(t, constants.OutcomeSkipped, res.Outcomes[1].Status)
	assert.Equal(t, constants.OutcomeSkipped, res.Outcomes[2].Status)
	assert.True(t, errors.Is(res.Outcomes[1].Err, context.Canceled))
	assert.Equal(t, 1, res.Rows())
	rec.AssertNumberOfCalls(t, "Recognize", 1)
}

func TestNewProcessor_InstructionsFollowCorrections(t *testing.T) {
	var got string
	rec := llm.RecognizerFunc(func(_ context.Context, _ llm.Image, instructions string) (string, error) {
		got = instructions
		return "[]", nil
	})

	n, err := register.DefaultNormalizer().WithCorrections([][2]string{{"Ramu", "Ramesh"}})
	require.NoError(t, err)
	out := NewProcessor(rec, nil, WithNormalizer(n)).ProcessImage(context.Background(), page(t, "p.png"))
	assert.Equal(t, constants.OutcomeEmpty, out.Status)
	assert.Contains(t, got, `"Sanjana"`)
	assert.True(t, strings.Contains(got, `Replace "Ramu" with "Ramesh"`))

	NewProcessor(rec, nil, WithInstructions("custom")).ProcessImage(context.Background(), page(t, "p.png"))
	assert.Equal(t, "custom", got)
}

func TestProcess_SourceTaggedContext(t *testing.T) {
	var sources, batches []string
	rec := llm.RecognizerFunc(func(ctx context.Context, img llm.Image, _ string) (string, error) {
		sources = append(sources, common.SourceFromContext(ctx))
		batches = append(batches, common.BatchIDFromContext(ctx))
		return "[]", nil
	})
	res, err := NewProcessor(rec, nil).Process(context.Background(), []ingest.Submission{page(t, "a.png"), page(t, "b.png")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png"}, sources)
	assert.Equal(t, []string{res.BatchID, res.BatchID}, batches)
}

func TestProcess_FailedImageContributesNothing(t *testing.T) {
	rec := &mockRecognizer{}
	rec.On("Recognize", mock.Anything, named("A.png"), mock.Anything).Return("", errors.New("connection refused"))
	rec.On("Recognize", mock.Anything, named("B.png"), mock.Anything).
		Return(`[{"Name":"B1","Amount":"5"},{"Name":"B2","Amount":"7"}]`, nil)

	res, err := NewProcessor(rec, nil).Process(context.Background(), []ingest.Submission{page(t, "A.png"), page(t, "B.png")})
	require.NoError(t, err)

	require.Equal(t, 2, res.Rows())
	for i, want := range []string{"B1", "B2"} {
		assert.Equal(t, want, res.Table.Rows[i]["Name"])
		assert.Equal(t, "B.png", res.Table.Rows[i][constants.FieldSourceFile])
	}
	assert.Equal(t, 1, res.Failed())
}

func TestProcess_ExtraColumnsInResponseOrder(t *testing.T) {
	rec := llm.RecognizerFunc(func(context.Context, llm.Image, string) (string, error) {
		return `[{"Name":"A","Ward":"3","Doctor":"Rao"}]`, nil
	})
	res, err := NewProcessor(rec, nil).Process(context.Background(), []ingest.Submission{page(t, "p.png")})
	require.NoError(t, err)

	cols := res.Table.Columns
	require.GreaterOrEqual(t, len(cols), 3)
	assert.Equal(t, []string{constants.FieldSourceFile, "Ward", "Doctor"}, cols[len(cols)-3:])
	assert.Equal(t, []string{"Name", "Ward", "Doctor"}, res.Outcomes[0].Keys)
}
