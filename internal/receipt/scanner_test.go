package receipt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestValidate(t *testing.T) {
	ok := Validate(Parse(groceryReceipt, now))
	assert.True(t, ok.Valid)
	assert.Empty(t, ok.Errors)
	assert.Empty(t, ok.Warnings)

	bad := Validate(Receipt{Confidence: 0.5, Total: decimal.NewFromInt(150000)})
	assert.False(t, bad.Valid)
	assert.Equal(t, []string{"Vendor information is missing"}, bad.Errors)
	assert.ElementsMatch(t, []string{
		"Date information is missing or invalid - using current date",
		"Total amount seems unusually high",
		"No individual items were detected",
		"Low confidence in OCR results - please verify manually",
	}, bad.Warnings)

	zero := Validate(Receipt{Vendor: "Shop", DateFound: true, Items: []Item{{Name: "x"}}})
	assert.Equal(t, []string{"Invalid total amount"}, zero.Errors)
}

func TestCategoryForVendor(t *testing.T) {
	cases := map[string]string{
		"WALMART SUPERCENTER": "Shopping",
		"Fresh Supermarket":   "Groceries",
		"Indian Oil Petrol":   "Transport",
		"Pizza Hut":           "Food",
		"Apollo Pharmacy":     "Healthcare",
		"PVR Cinema":          "Entertainment",
		"Unknown Traders":     "Shopping",
	}
	for vendor, want := range cases {
		assert.Equal(t, want, CategoryForVendor(vendor), vendor)
	}
}

func TestEnhance(t *testing.T) {
	r := Enhance(Receipt{Vendor: "Cafe Mocha", Confidence: 0.95})
	assert.Equal(t, "Food", r.Category)
	assert.Equal(t, "Receipt from Cafe Mocha", r.Description)
	assert.Equal(t, "High", r.ConfidenceLevel)

	assert.Equal(t, "Medium", Enhance(Receipt{Confidence: 0.7}).ConfidenceLevel)
	assert.Equal(t, "Low", Enhance(Receipt{Confidence: 0.2}).ConfidenceLevel)
	assert.Empty(t, Enhance(Receipt{}).ConfidenceLevel)
}

func TestReceipt_TransactionInput(t *testing.T) {
	r := Enhance(Parse(groceryReceipt, now))
	in := r.TransactionInput()

	assert.Equal(t, domain.TransactionExpense, in.Type)
	assert.Equal(t, "154.88", in.Amount.String())
	assert.Equal(t, "2026-03-15", in.Date)
	assert.Equal(t, domain.MethodReceipt, in.Method)
	assert.Equal(t, "Receipt from BIG BAZAAR", in.Description)
	assert.NoError(t, in.Normalize().Validate())
}

type fakeExtractor struct {
	out Extraction
	err error
}

func (f fakeExtractor) ExtractText(context.Context, []byte, string) (Extraction, error) {
	return f.out, f.err
}

func newTestScanner(ext TextExtractor) *Scanner {
	s := NewScanner(ext, zerolog.Nop())
	s.now = func() time.Time { return now }
	return s
}

func TestScanner_Scan(t *testing.T) {
	s := newTestScanner(fakeExtractor{out: Extraction{Text: groceryReceipt, Confidence: 0.92}})

	res, err := s.Scan(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "BIG BAZAAR", res.Receipt.Vendor)
	assert.Equal(t, DefaultCurrency, res.Receipt.Currency)
	assert.Equal(t, "High", res.Receipt.ConfidenceLevel)
	assert.True(t, res.Validation.Valid)
}

func TestScanner_ScanErrors(t *testing.T) {
	ctx := context.Background()

	_, err := newTestScanner(nil).Scan(ctx, []byte("img"), "")
	assert.Error(t, err)

	_, err = newTestScanner(fakeExtractor{}).Scan(ctx, nil, "")
	assert.Error(t, err)

	_, err = newTestScanner(fakeExtractor{err: errors.New("quota exceeded")}).Scan(ctx, []byte("img"), "")
	assert.ErrorContains(t, err, "quota exceeded")

	res, err := newTestScanner(fakeExtractor{out: Extraction{Text: "1234\nsmudge"}}).Scan(ctx, []byte("img"), "")
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.False(t, res.Validation.Valid)
}

type fakeModels struct {
	text     string
	err      error
	gotModel string
	gotParts int
	gotMIME  string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotParts = len(contents[0].Parts)
	f.gotMIME = contents[0].Parts[1].InlineData.MIMEType
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func TestGeminiExtractor(t *testing.T) {
	models := &fakeModels{text: "```json\n{\"text\": \"Shop\\nTotal 10\", \"confidence\": 0.81}\n```"}
	g := &GeminiExtractor{models: models, model: DefaultModelName}

	out, err := g.ExtractText(context.Background(), []byte("img"), "")
	require.NoError(t, err)
	assert.Equal(t, "Shop\nTotal 10", out.Text)
	assert.Equal(t, 0.81, out.Confidence)
	assert.Equal(t, DefaultModelName, models.gotModel)
	assert.Equal(t, 2, models.gotParts)
	assert.Equal(t, "image/jpeg", models.gotMIME)
}

func TestGeminiExtractor_PlainTextAndErrors(t *testing.T) {
	g := &GeminiExtractor{models: &fakeModels{text: "Shop\nTotal 10"}, model: "m"}
	out, err := g.ExtractText(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "Shop\nTotal 10", out.Text)
	assert.Zero(t, out.Confidence)

	g = &GeminiExtractor{models: &fakeModels{text: ""}, model: "m"}
	_, err = g.ExtractText(context.Background(), []byte("img"), "")
	assert.Error(t, err)

	g = &GeminiExtractor{models: &fakeModels{err: errors.New("unavailable")}, model: "m"}
	_, err = g.ExtractText(context.Background(), []byte("img"), "")
	assert.ErrorContains(t, err, "unavailable")
}

type fakeImages map[string][]byte

func (f fakeImages) Put(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("read only")
}

func (f fakeImages) Fetch(_ context.Context, uri string) ([]byte, error) {
	data, ok := f[uri]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

type fakeRecorder struct {
	got []domain.TransactionInput
	err error
}

func (f *fakeRecorder) AddTransaction(_ context.Context, in domain.TransactionInput) (domain.Transaction, error) {
	if f.err != nil {
		return domain.Transaction{}, f.err
	}
	f.got = append(f.got, in)
	return domain.Transaction{ID: "t-1", Type: in.Type, Amount: in.Amount}, nil
}

func TestProcessor_HandleJob(t *testing.T) {
	images := fakeImages{"mem://r.jpg": []byte("img")}
	recorder := &fakeRecorder{}
	p := NewProcessor(images, newTestScanner(fakeExtractor{out: Extraction{Text: groceryReceipt, Confidence: 0.9}}), recorder, zerolog.Nop())

	job := &jobs.ScanReceiptJob{JobID: "j1", ImageURI: "mem://r.jpg"}
	require.NoError(t, p.HandleJob(context.Background(), job))

	assert.Equal(t, "t-1", job.TransactionID)
	assert.Equal(t, "BIG BAZAAR", job.Vendor)
	assert.Equal(t, "154.88", job.Total)
	require.Len(t, recorder.got, 1)
	assert.Equal(t, domain.MethodReceipt, recorder.got[0].Method)
}

func TestProcessor_FailureKinds(t *testing.T) {
	ctx := context.Background()
	images := fakeImages{"mem://r.jpg": []byte("img")}

	unreadable := NewProcessor(images, newTestScanner(fakeExtractor{out: Extraction{Text: "???"}}), &fakeRecorder{}, zerolog.Nop())
	err := unreadable.HandleJob(ctx, &jobs.ScanReceiptJob{ImageURI: "mem://r.jpg"})
	assert.True(t, jobs.IsPermanent(err))

	missing := NewProcessor(images, newTestScanner(fakeExtractor{}), &fakeRecorder{}, zerolog.Nop())
	err = missing.HandleJob(ctx, &jobs.ScanReceiptJob{ImageURI: "mem://gone.jpg"})
	require.Error(t, err)
	assert.False(t, jobs.IsPermanent(err))

	backendDown := NewProcessor(images, newTestScanner(fakeExtractor{out: Extraction{Text: groceryReceipt}}), &fakeRecorder{err: errors.New("502")}, zerolog.Nop())
	err = backendDown.HandleJob(ctx, &jobs.ScanReceiptJob{ImageURI: "mem://r.jpg"})
	require.Error(t, err)
	assert.False(t, jobs.IsPermanent(err))

	rejected := NewProcessor(images, newTestScanner(fakeExtractor{out: Extraction{Text: groceryReceipt}}), &fakeRecorder{err: &domain.ValidationError{Field: "amount", Message: "bad"}}, zerolog.Nop())
	err = rejected.HandleJob(ctx, &jobs.ScanReceiptJob{ImageURI: "mem://r.jpg"})
	assert.True(t, jobs.IsPermanent(err))
}
