package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"billfold/internal/core/id"
	"billfold/internal/domain/invoice"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// ArchivedEntry is one durable audit record. The in-document history
// keeps only the most recent 50 entries; the archive keeps everything.
type ArchivedEntry struct {
	ID                id.ID           `db:"id"`
	CompanyID         id.ID           `db:"company_id"`
	InvoiceID         id.ID           `db:"invoice_id"`
	Actor             *string         `db:"actor"`
	Action            string          `db:"action"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	Reason            string          `db:"reason"`
	OccurredAt        time.Time       `db:"occurred_at"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditArchive mirrors invoice history entries into sys_audit.
// Large change sets are zstd-compressed.
type AuditArchive struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int // bytes
}

// Compile-time check against the domain contract.
var _ invoice.AuditArchiver = (*AuditArchive)(nil)

// NewAuditArchive creates a new audit archive.
func NewAuditArchive(txManager *TxManager) (*AuditArchive, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditArchive{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024, // 10KB
	}, nil
}

// Archive persists one history entry.
func (a *AuditArchive) Archive(ctx context.Context, companyID, invoiceID id.ID, entry invoice.AuditEntry) error {
	var changes json.RawMessage
	if len(entry.Changes) > 0 {
		encoded, err := json.Marshal(entry.Changes)
		if err != nil {
			return fmt.Errorf("marshal changes: %w", err)
		}
		changes = encoded
	}

	algo := CompressionNone
	var compressed []byte
	if len(changes) > a.compressThreshold {
		compressed = a.encoder.EncodeAll(changes, nil)
		changes = nil
		algo = CompressionZstd
	}

	querier := a.txManager.GetQuerier(ctx)
	_, err := querier.Exec(ctx, `
		INSERT INTO sys_audit (
			id, company_id, invoice_id, actor, action,
			changes, changes_compressed, compression_algo, reason,
			occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		id.New(), companyID, invoiceID, entry.Actor, string(entry.Action),
		changes, compressed, algo, entry.Reason,
		entry.Timestamp, time.Now().UTC(),
	)
	return err
}

// GetInvoiceTrail retrieves archived entries for an invoice, newest
// first, decompressing change sets where needed.
func (a *AuditArchive) GetInvoiceTrail(ctx context.Context, companyID, invoiceID id.ID, limit int) ([]ArchivedEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	querier := a.txManager.GetQuerier(ctx)
	rows, err := querier.Query(ctx, `
		SELECT id, company_id, invoice_id, actor, action,
		       changes, changes_compressed, compression_algo, reason,
		       occurred_at, created_at
		FROM sys_audit
		WHERE company_id = $1 AND invoice_id = $2
		ORDER BY occurred_at DESC
		LIMIT $3
	`, companyID, invoiceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	var entries []ArchivedEntry
	for rows.Next() {
		var e ArchivedEntry
		err := rows.Scan(
			&e.ID, &e.CompanyID, &e.InvoiceID, &e.Actor, &e.Action,
			&e.Changes, &e.ChangesCompressed, &e.CompressionAlgo, &e.Reason,
			&e.OccurredAt, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		if e.CompressionAlgo == CompressionZstd && len(e.ChangesCompressed) > 0 {
			decoded, err := a.decoder.DecodeAll(e.ChangesCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress audit changes: %w", err)
			}
			e.Changes = decoded
			e.ChangesCompressed = nil
		}

		entries = append(entries, e)
	}
	return entries, rows.Err()
}
