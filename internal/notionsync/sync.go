// Package notionsync mirrors the dashboard's goals and transactions into two
// Notion databases. Pages are keyed by the backend id, so running an export
// twice changes nothing; pages whose record disappeared are archived.
package notionsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"
)

const queryPageSize = 100

// Config names the target databases. An empty id skips that collection.
type Config struct {
	GoalsDatabaseID        string
	TransactionsDatabaseID string
	DryRun                 bool
}

// Counts summarizes one collection's export.
type Counts struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Archived  int `json:"archived"`
	Failed    int `json:"failed"`
}

// Report summarizes an export.
type Report struct {
	Goals        Counts `json:"goals"`
	Transactions Counts `json:"transactions"`
	DryRun       bool   `json:"dryRun"`
}

// Exporter writes snapshots to Notion.
type Exporter struct {
	notion NotionService
	cfg    Config
	log    zerolog.Logger
}

// NewExporter creates an exporter.
func NewExporter(notion NotionService, cfg Config, log zerolog.Logger) *Exporter {
	return &Exporter{notion: notion, cfg: cfg, log: log}
}

type record struct {
	id          string
	fingerprint string
	props       notionapi.Properties
}

// Export syncs both collections of snap. Failures of single pages are
// counted and logged; only a failed database query aborts a collection.
func (e *Exporter) Export(ctx context.Context, snap domain.Snapshot) (Report, error) {
	report := Report{DryRun: e.cfg.DryRun}
	var errs []error

	if e.cfg.GoalsDatabaseID != "" {
		records := make([]record, 0, len(snap.Goals))
		for _, g := range snap.Goals {
			records = append(records, record{id: g.ID, fingerprint: Fingerprint(g), props: GoalToNotionProperties(g)})
		}
		counts, err := e.sync(ctx, "goals", e.cfg.GoalsDatabaseID, records)
		report.Goals = counts
		if err != nil {
			errs = append(errs, err)
		}
	}

	if e.cfg.TransactionsDatabaseID != "" {
		records := make([]record, 0, len(snap.Transactions))
		for _, tx := range snap.Transactions {
			records = append(records, record{id: tx.ID, fingerprint: Fingerprint(tx), props: TransactionToNotionProperties(tx)})
		}
		counts, err := e.sync(ctx, "transactions", e.cfg.TransactionsDatabaseID, records)
		report.Transactions = counts
		if err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return report, fmt.Errorf("Export: %w", err)
	}
	return report, nil
}

func (e *Exporter) sync(ctx context.Context, collection, databaseID string, records []record) (Counts, error) {
	log := e.log.With().Str("collection", collection).Bool("dry_run", e.cfg.DryRun).Logger()
	var counts Counts

	pages, err := queryAllPages(ctx, e.notion, databaseID)
	if err != nil {
		return counts, fmt.Errorf("sync %s: %w", collection, err)
	}
	log.Info().Int("records", len(records)).Int("pages", len(pages)).Msg("Starting Notion export")

	existing := make(map[string]notionapi.Page, len(pages))
	wanted := make(map[string]bool, len(records))
	for _, r := range records {
		wanted[r.id] = true
	}

	for _, page := range pages {
		id := pageText(page, PropID)
		if _, dup := existing[id]; id != "" && wanted[id] && !dup {
			existing[id] = page
			continue
		}
		// Pages without an id, for records that no longer exist, or duplicates.
		if !e.cfg.DryRun {
			if err := e.notion.ArchivePage(ctx, string(page.ID)); err != nil {
				log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to archive stale page")
				counts.Failed++
				continue
			}
		}
		counts.Archived++
	}

	for _, r := range records {
		page, ok := existing[r.id]
		switch {
		case ok && pageText(page, PropFingerprint) == r.fingerprint:
			counts.Unchanged++
		case ok:
			if !e.cfg.DryRun {
				if _, err := e.notion.UpdatePage(ctx, string(page.ID), r.props); err != nil {
					log.Warn().Err(err).Str("record_id", r.id).Msg("Failed to update page")
					counts.Failed++
					continue
				}
			}
			counts.Updated++
		default:
			if !e.cfg.DryRun {
				if _, err := e.notion.CreatePage(ctx, databaseID, r.props); err != nil {
					log.Warn().Err(err).Str("record_id", r.id).Msg("Failed to create page")
					counts.Failed++
					continue
				}
			}
			counts.Created++
		}
	}

	log.Info().
		Int("created", counts.Created).
		Int("updated", counts.Updated).
		Int("unchanged", counts.Unchanged).
		Int("archived", counts.Archived).
		Int("failed", counts.Failed).
		Msg("Notion export finished")
	return counts, nil
}

func queryAllPages(ctx context.Context, notion NotionService, databaseID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: queryPageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}
		pages = append(pages, resp.Results...)

		if !resp.HasMore {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}
