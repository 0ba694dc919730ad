package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/classbank-api/internal/dto"
	"github.com/noah-isme/classbank-api/internal/models"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
	"github.com/noah-isme/classbank-api/pkg/export"
	"github.com/noah-isme/classbank-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type statementLedger interface {
	ListForStatement(ctx context.Context, walletID string, since, until time.Time) ([]models.Transaction, error)
}

// ExportConfig tunes statement generation.
type ExportConfig struct {
	// APIPrefix is prepended to download paths, e.g. "/api/v1".
	APIPrefix string
	// ResultTTL bounds both the signed URL and the file retention window.
	ResultTTL time.Duration
}

// ExportService renders wallet statements to CSV or PDF, stores the
// artifact and hands out signed download URLs.
type ExportService struct {
	transactions statementLedger
	wallets      approvalWallets
	students     approvalStudents
	store        fileStorage
	signer       *storage.SignedURLSigner
	csv          csvRenderer
	pdf          pdfRenderer
	logger       *zap.Logger
	config       ExportConfig
}

// ExportServiceOption customises the ExportService.
type ExportServiceOption func(*ExportService)

// WithCSVRenderer overrides the CSV renderer.
func WithCSVRenderer(r csvRenderer) ExportServiceOption {
	return func(s *ExportService) {
		if r != nil {
			s.csv = r
		}
	}
}

// WithPDFRenderer overrides the PDF renderer.
func WithPDFRenderer(r pdfRenderer) ExportServiceOption {
	return func(s *ExportService) {
		if r != nil {
			s.pdf = r
		}
	}
}

// NewExportService constructs an ExportService.
func NewExportService(transactions statementLedger, wallets approvalWallets, students approvalStudents, store fileStorage, signer *storage.SignedURLSigner, logger *zap.Logger, config ExportConfig, opts ...ExportServiceOption) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ResultTTL <= 0 {
		config.ResultTTL = 24 * time.Hour
	}
	svc := &ExportService{
		transactions: transactions,
		wallets:      wallets,
		students:     students,
		store:        store,
		signer:       signer,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		logger:       logger,
		config:       config,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

var statementHeaders = []string{"Date", "Type", "Direction", "Amount", "Balance After", "Reason"}

// GenerateStatement builds a statement for one student's wallet over a
// date range and stores it under a fresh export ID.
func (s *ExportService) GenerateStatement(ctx context.Context, classroomID string, req dto.StatementRequest) (*dto.StatementResponse, error) {
	if !req.To.After(req.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "statement range is empty")
	}
	if req.Format != "csv" && req.Format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	student, err := s.students.GetByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.ClassroomID != classroomID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	wallet, err := s.wallets.GetByStudent(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load wallet")
	}

	transactions, err := s.transactions.ListForStatement(ctx, wallet.ID, req.From, req.To)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load statement entries")
	}

	dataset := buildStatementDataset(wallet.ID, wallet.Balance, transactions)

	var payload []byte
	switch req.Format {
	case "csv":
		payload, err = s.csv.Render(dataset)
	case "pdf":
		title := fmt.Sprintf("Statement for %s (%s to %s)",
			student.Name, req.From.Format("2006-01-02"), req.To.Format("2006-01-02"))
		payload, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
	}

	exportID := uuid.NewString()
	relPath := path.Join("statements", student.ID, fmt.Sprintf("%s.%s", exportID, req.Format))
	if _, err := s.store.Save(relPath, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store statement")
	}

	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	s.logger.Info("statement generated",
		zap.String("export_id", exportID),
		zap.String("student_id", student.ID),
		zap.String("format", req.Format),
		zap.Int("entries", len(transactions)))

	return &dto.StatementResponse{
		ExportID:    exportID,
		Format:      req.Format,
		DownloadURL: fmt.Sprintf("%s/exports/%s", s.config.APIPrefix, token),
		ExpiresAt:   expiresAt,
	}, nil
}

// Open validates a signed token and returns the stored artifact together
// with a download filename.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	exportID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	return file, fmt.Sprintf("statement-%s%s", exportID, path.Ext(relPath)), nil
}

// Cleanup deletes artifacts older than the retention window. Returns how
// many files were removed.
func (s *ExportService) Cleanup() (int, error) {
	deleted, err := s.store.CleanupOlderThan(s.config.ResultTTL)
	if err != nil {
		return 0, fmt.Errorf("cleanup statements: %w", err)
	}
	if len(deleted) > 0 {
		s.logger.Info("expired statements removed", zap.Int("count", len(deleted)))
	}
	return len(deleted), nil
}

// buildStatementDataset walks the entries oldest first, reconstructing the
// running balance backwards from the wallet's current balance.
func buildStatementDataset(walletID string, currentBalance int64, transactions []models.Transaction) export.Dataset {
	// Work out the balance before the first entry by unwinding the
	// whole window from the current balance.
	opening := currentBalance
	for _, tx := range transactions {
		opening -= statementDelta(walletID, tx)
	}

	rows := make([]map[string]string, 0, len(transactions))
	running := opening
	for _, tx := range transactions {
		delta := statementDelta(walletID, tx)
		running += delta
		direction := "CREDIT"
		if delta < 0 {
			direction = "DEBIT"
		}
		rows = append(rows, map[string]string{
			"Date":          tx.CreatedAt.Format("2006-01-02 15:04"),
			"Type":          string(tx.Type),
			"Direction":     direction,
			"Amount":        strconv.FormatInt(delta, 10),
			"Balance After": strconv.FormatInt(running, 10),
			"Reason":        tx.Reason,
		})
	}
	return export.Dataset{
		Headers:        statementHeaders,
		NumericHeaders: []string{"Amount", "Balance After"},
		Rows:           rows,
	}
}

// statementDelta is the signed effect of a ledger entry on one wallet.
func statementDelta(walletID string, tx models.Transaction) int64 {
	if tx.ToWalletID != nil && *tx.ToWalletID == walletID {
		return tx.Amount
	}
	if tx.FromWalletID != nil && *tx.FromWalletID == walletID {
		return -tx.Amount
	}
	return 0
}
