package bigquery

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/history"
	"github.com/dvloznov/finance-dashboard/internal/insights"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

const (
	DefaultDataset = "finance_dashboard"
	DefaultTable   = "metrics_history"
)

var (
	_ history.Sink   = (*MetricsHistoryRepository)(nil)
	_ history.Reader = (*MetricsHistoryRepository)(nil)
)

// MetricsHistoryRow is one row of the metrics_history table.
type MetricsHistoryRow struct {
	EntryID           string     `bigquery:"entry_id"`      // REQUIRED
	SnapshotDate      civil.Date `bigquery:"snapshot_date"` // REQUIRED, partition column
	RecordedAt        time.Time  `bigquery:"recorded_at"`   // REQUIRED
	SnapshotAt        time.Time  `bigquery:"snapshot_at"`
	TotalIncome       *big.Rat   `bigquery:"total_income"`   // NUMERIC
	TotalSpending     *big.Rat   `bigquery:"total_spending"` // NUMERIC
	SavingsRate       float64    `bigquery:"savings_rate"`
	BudgetUtilization float64    `bigquery:"budget_utilization"`
	InvestmentGrowth  float64    `bigquery:"investment_growth"`
	GoalCount         int64      `bigquery:"goal_count"`
	TransactionCount  int64      `bigquery:"transaction_count"`
	CurrentSavings    *big.Rat   `bigquery:"current_month_savings"` // NUMERIC
	LastMonthSavings  *big.Rat   `bigquery:"last_month_savings"`    // NUMERIC
	Trend             string     `bigquery:"trend"`
}

// RowFromEntry converts a history entry to a table row.
func RowFromEntry(e history.Entry) *MetricsHistoryRow {
	return &MetricsHistoryRow{
		EntryID:           e.ID,
		SnapshotDate:      civil.DateOf(e.RecordedAt),
		RecordedAt:        e.RecordedAt,
		SnapshotAt:        e.SnapshotAt,
		TotalIncome:       numeric(e.Metrics.TotalIncome),
		TotalSpending:     numeric(e.Metrics.TotalSpending),
		SavingsRate:       e.Metrics.SavingsRate,
		BudgetUtilization: e.Metrics.BudgetUtilization,
		InvestmentGrowth:  e.Metrics.InvestmentGrowth,
		GoalCount:         int64(e.Goals),
		TransactionCount:  int64(e.Transactions),
		CurrentSavings:    numeric(e.CurrentSavings),
		LastMonthSavings:  numeric(e.LastMonthSavings),
		Trend:             string(e.Trend),
	}
}

// Entry converts a row back to a history entry.
func (r *MetricsHistoryRow) Entry() history.Entry {
	return history.Entry{
		ID:         r.EntryID,
		RecordedAt: r.RecordedAt,
		SnapshotAt: r.SnapshotAt,
		Metrics: domain.Metrics{
			TotalIncome:       ratFloat(r.TotalIncome),
			TotalSpending:     ratFloat(r.TotalSpending),
			SavingsRate:       r.SavingsRate,
			BudgetUtilization: r.BudgetUtilization,
			InvestmentGrowth:  r.InvestmentGrowth,
		},
		Goals:            int(r.GoalCount),
		Transactions:     int(r.TransactionCount),
		CurrentSavings:   ratFloat(r.CurrentSavings),
		LastMonthSavings: ratFloat(r.LastMonthSavings),
		Trend:            insights.Trend(r.Trend),
	}
}

// numeric rounds to the 9 decimal places BigQuery NUMERIC supports.
func numeric(f float64) *big.Rat {
	return decimal.NewFromFloat(f).Round(9).Rat()
}

func ratFloat(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	return decimal.NewFromBigRat(r, 9).InexactFloat64()
}

// MetricsHistoryRepository stores history entries in BigQuery.
type MetricsHistoryRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	tableID   string
}

// NewMetricsHistoryRepository creates a repository with its own client.
func NewMetricsHistoryRepository(ctx context.Context, projectID, datasetID, tableID string) (*MetricsHistoryRepository, error) {
	if projectID == "" {
		return nil, errors.New("NewMetricsHistoryRepository: project id is required")
	}
	if datasetID == "" {
		datasetID = DefaultDataset
	}
	if tableID == "" {
		tableID = DefaultTable
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewMetricsHistoryRepository: creating client: %w", err)
	}
	return &MetricsHistoryRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		tableID:   tableID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *MetricsHistoryRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// MetricsHistorySchema is inferred from MetricsHistoryRow.
func MetricsHistorySchema() (bigquery.Schema, error) {
	schema, err := bigquery.InferSchema(MetricsHistoryRow{})
	if err != nil {
		return nil, fmt.Errorf("MetricsHistorySchema: %w", err)
	}
	return schema, nil
}

// EnsureTable creates the dataset and the day-partitioned table when missing.
func (r *MetricsHistoryRepository) EnsureTable(ctx context.Context) error {
	ds := r.client.DatasetInProject(r.projectID, r.datasetID)
	if err := ds.Create(ctx, &bigquery.DatasetMetadata{}); err != nil && !isConflict(err) {
		return fmt.Errorf("EnsureTable: creating dataset %s: %w", r.datasetID, err)
	}

	schema, err := MetricsHistorySchema()
	if err != nil {
		return fmt.Errorf("EnsureTable: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "snapshot_date",
		},
	}
	if err := ds.Table(r.tableID).Create(ctx, meta); err != nil && !isConflict(err) {
		return fmt.Errorf("EnsureTable: creating table %s: %w", r.tableID, err)
	}
	return nil
}

func isConflict(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}

// InsertSnapshot streams one entry into the table. The entry id doubles as
// the insert id so retried inserts are deduplicated.
func (r *MetricsHistoryRepository) InsertSnapshot(ctx context.Context, e history.Entry) error {
	if e.ID == "" {
		return errors.New("InsertSnapshot: entry id is required")
	}
	saver := &bigquery.StructSaver{
		Struct:   RowFromEntry(e),
		InsertID: e.ID,
	}
	inserter := r.client.DatasetInProject(r.projectID, r.datasetID).Table(r.tableID).Inserter()
	if err := inserter.Put(ctx, saver); err != nil {
		return fmt.Errorf("InsertSnapshot: inserting row: %w", err)
	}
	return nil
}

// ListRecent returns the newest entries first.
func (r *MetricsHistoryRepository) ListRecent(ctx context.Context, limit int) ([]history.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.client.Query(fmt.Sprintf(`
		SELECT *
		FROM `+"`%s.%s.%s`"+`
		ORDER BY recorded_at DESC
		LIMIT @limit
	`, r.projectID, r.datasetID, r.tableID))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: query read: %w", err)
	}

	entries := []history.Entry{}
	for {
		var row MetricsHistoryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecent: iter next: %w", err)
		}
		entries = append(entries, row.Entry())
	}
	return entries, nil
}
