package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classbank-api/internal/dto"
	"github.com/noah-isme/classbank-api/internal/models"
	"github.com/noah-isme/classbank-api/pkg/storage"
)

type statementLedgerStub struct {
	transactions []models.Transaction
}

func (s *statementLedgerStub) ListForStatement(ctx context.Context, walletID string, since, until time.Time) ([]models.Transaction, error) {
	return s.transactions, nil
}

func TestBuildStatementDatasetRunningBalance(t *testing.T) {
	walletID := "wallet-1"
	entries := []models.Transaction{
		{ToWalletID: &walletID, Amount: 100, Type: models.TransactionEmission, Reason: "quiz prize",
			CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		{FromWalletID: &walletID, Amount: 30, Type: models.TransactionPurchase, Reason: "purchase: Sticker",
			CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		{ToWalletID: &walletID, Amount: 15, Type: models.TransactionTransfer, Reason: "thanks",
			CreatedAt: time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)},
	}

	// current balance 135 implies an opening balance of 50
	dataset := buildStatementDataset(walletID, 135, entries)
	require.Len(t, dataset.Rows, 3)
	require.Equal(t, "100", dataset.Rows[0]["Amount"])
	require.Equal(t, "CREDIT", dataset.Rows[0]["Direction"])
	require.Equal(t, "150", dataset.Rows[0]["Balance After"])
	require.Equal(t, "-30", dataset.Rows[1]["Amount"])
	require.Equal(t, "DEBIT", dataset.Rows[1]["Direction"])
	require.Equal(t, "120", dataset.Rows[1]["Balance After"])
	require.Equal(t, "135", dataset.Rows[2]["Balance After"])
	// amount columns are flagged so the PDF renderer right-aligns them
	require.Equal(t, []string{"Amount", "Balance After"}, dataset.NumericHeaders)
}

func TestExportServiceGenerateAndOpen(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)

	walletID := "wallet-1"
	ledger := &statementLedgerStub{transactions: []models.Transaction{
		{ToWalletID: &walletID, Amount: 100, Type: models.TransactionEmission, Reason: "award",
			CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}}
	wallets := &walletReaderStub{wallets: map[string]*models.Wallet{
		"student-1": {ID: walletID, StudentID: "student-1", ClassroomID: "class-1", Balance: 100},
	}}
	students := &approvalStudentsStub{students: map[string]*models.Student{
		"student-1": {ID: "student-1", ClassroomID: "class-1", Name: "Ava", Active: true},
	}}

	svc := NewExportService(ledger, wallets, students, store, signer, nil, ExportConfig{APIPrefix: "/api/v1"})

	response, err := svc.GenerateStatement(context.Background(), "class-1", dto.StatementRequest{
		StudentID: "student-1",
		From:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Format:    "csv",
	})
	require.NoError(t, err)
	require.NotEmpty(t, response.ExportID)
	require.Contains(t, response.DownloadURL, "/api/v1/exports/")

	token := strings.TrimPrefix(response.DownloadURL, "/api/v1/exports/")
	file, filename, err := svc.Open(token)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	require.True(t, strings.HasSuffix(filename, ".csv"))
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Contains(t, string(content), "award")
	require.Contains(t, string(content), "EMISSION")
}

func TestExportServiceRejectsForeignStudent(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)

	students := &approvalStudentsStub{students: map[string]*models.Student{
		"student-1": {ID: "student-1", ClassroomID: "class-other"},
	}}
	svc := NewExportService(&statementLedgerStub{}, &walletReaderStub{}, students, store, signer, nil, ExportConfig{})

	_, err = svc.GenerateStatement(context.Background(), "class-1", dto.StatementRequest{
		StudentID: "student-1",
		From:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Format:    "pdf",
	})
	require.Error(t, err)
}

func TestExportServiceInvalidToken(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewExportService(&statementLedgerStub{}, &walletReaderStub{}, &approvalStudentsStub{}, store, signer, nil, ExportConfig{})

	_, _, err = svc.Open("not-a-token")
	require.Error(t, err)
}
