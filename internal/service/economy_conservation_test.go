package service

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classbank-api/internal/dto"
	"github.com/noah-isme/classbank-api/internal/models"
	"github.com/noah-isme/classbank-api/internal/repository"
	appErrors "github.com/noah-isme/classbank-api/pkg/errors"
)

// memoryEconomy applies ledger entries to shared in-memory wallets with the
// same guards the SQL layer enforces: treasury debits fail below zero and
// wallet debits fail below the balance. It records every entry so whole
// service flows can be checked against the conservation rules.
type memoryEconomy struct {
	classroom *models.Classroom
	wallets   map[string]*models.Wallet
	entries   []repository.LedgerEntry
}

func (e *memoryEconomy) Mint(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error) {
	if e.classroom.TreasuryRemaining < entry.Amount {
		return nil, repository.ErrInsufficientTreasury
	}
	e.classroom.TreasuryRemaining -= entry.Amount
	e.wallets[*entry.ToWalletID].Balance += entry.Amount
	e.entries = append(e.entries, entry)
	return &models.Transaction{Amount: entry.Amount, Type: entry.Type}, nil
}

func (e *memoryEconomy) BatchMint(ctx context.Context, classroomID string, credits []repository.WalletCredit, reason string, createdBy *string) ([]models.Transaction, error) {
	var total int64
	for _, c := range credits {
		total += c.Amount
	}
	if e.classroom.TreasuryRemaining < total {
		return nil, repository.ErrInsufficientTreasury
	}
	e.classroom.TreasuryRemaining -= total
	records := make([]models.Transaction, 0, len(credits))
	for _, c := range credits {
		walletID := c.WalletID
		e.wallets[walletID].Balance += c.Amount
		e.entries = append(e.entries, repository.LedgerEntry{
			ClassroomID: classroomID, ToWalletID: &walletID,
			Amount: c.Amount, Type: models.TransactionEmission, Reason: reason,
		})
		records = append(records, models.Transaction{ClassroomID: classroomID, Amount: c.Amount, Type: models.TransactionEmission})
	}
	return records, nil
}

func (e *memoryEconomy) Credit(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error) {
	e.wallets[*entry.ToWalletID].Balance += entry.Amount
	e.entries = append(e.entries, entry)
	return &models.Transaction{Amount: entry.Amount, Type: entry.Type}, nil
}

func (e *memoryEconomy) Spend(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error) {
	wallet := e.wallets[*entry.FromWalletID]
	if wallet.Balance < entry.Amount {
		return nil, repository.ErrInsufficientBalance
	}
	wallet.Balance -= entry.Amount
	e.entries = append(e.entries, entry)
	return &models.Transaction{Amount: entry.Amount, Type: entry.Type}, nil
}

func (e *memoryEconomy) Transfer(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error) {
	from := e.wallets[*entry.FromWalletID]
	if from.Balance < entry.Amount {
		return nil, repository.ErrInsufficientBalance
	}
	from.Balance -= entry.Amount
	e.wallets[*entry.ToWalletID].Balance += entry.Amount
	e.entries = append(e.entries, entry)
	return &models.Transaction{Amount: entry.Amount, Type: entry.Type}, nil
}

func (e *memoryEconomy) Lock(ctx context.Context, entry repository.LedgerEntry) (*models.Transaction, error) {
	return e.Spend(ctx, entry)
}

func (e *memoryEconomy) Payout(ctx context.Context, entry repository.LedgerEntry, interest int64) (*models.Transaction, error) {
	paid := entry
	paid.Amount += interest
	e.wallets[*paid.ToWalletID].Balance += paid.Amount
	e.entries = append(e.entries, paid)
	return &models.Transaction{Amount: paid.Amount, Type: paid.Type}, nil
}

// checkInvariants verifies the conservation rules after every operation:
// no wallet is negative, each balance matches the sum of its ledger entries,
// and the emitted treasury share equals the sum of EMISSION entries exactly.
func (e *memoryEconomy) checkInvariants(t *testing.T) {
	t.Helper()
	var minted int64
	derived := make(map[string]int64, len(e.wallets))
	for _, entry := range e.entries {
		if entry.Type == models.TransactionEmission {
			minted += entry.Amount
		}
		if entry.FromWalletID != nil {
			derived[*entry.FromWalletID] -= entry.Amount
		}
		if entry.ToWalletID != nil {
			derived[*entry.ToWalletID] += entry.Amount
		}
	}
	require.Equal(t, e.classroom.TreasuryTotal-e.classroom.TreasuryRemaining, minted)
	require.GreaterOrEqual(t, e.classroom.TreasuryRemaining, int64(0))
	for id, wallet := range e.wallets {
		require.GreaterOrEqual(t, wallet.Balance, int64(0))
		require.Equal(t, derived[id], wallet.Balance)
	}
}

// Drives a seeded mix of awards, purchases, transfers, refunds, streak
// bonuses and term deposits through the real services and checks the
// conservation rules after every single operation. Individual operations
// are allowed to be refused; silent corruption is not.
func TestEconomyConservationAcrossMixedFlows(t *testing.T) {
	current := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	classroom := &models.Classroom{
		ID: "class-1", TreasuryTotal: 5000, TreasuryRemaining: 5000,
		Settings: models.DefaultClassroomSettings(),
	}
	studentIDs := []string{"student-1", "student-2", "student-3", "student-4"}
	byWalletID := make(map[string]*models.Wallet, len(studentIDs))
	byStudent := make(map[string]*models.Wallet, len(studentIDs))
	roster := make(map[string]*models.Student, len(studentIDs))
	for i, id := range studentIDs {
		wallet := &models.Wallet{ID: fmt.Sprintf("wallet-%d", i+1), StudentID: id, ClassroomID: "class-1"}
		byWalletID[wallet.ID] = wallet
		byStudent[id] = wallet
		roster[id] = &models.Student{ID: id, ClassroomID: "class-1", Active: true}
	}
	eco := &memoryEconomy{classroom: classroom, wallets: byWalletID}
	wallets := &walletReaderStub{wallets: byStudent}
	classrooms := &approvalClassroomsStub{classroom: classroom}

	streakStore := newStreakStoreStub()
	streakStore.rewards[3] = &models.StreakReward{Milestone: 3, RewardAmount: 15, RewardName: "3-day run", Active: true}
	streakSvc := NewStreakService(streakStore, wallets, eco, nil,
		WithStreakClock(clock), WithStreakClassrooms(classrooms))

	ledgerSvc := NewLedgerService(eco, wallets, nil, nil, nil, WithStreakRecorder(streakSvc))

	market := &approvalMarketStub{items: map[string]*models.MarketItem{
		"item-1": {
			ID: "item-1", ClassroomID: "class-1", Name: "Homework pass",
			Type: models.ItemIndividual, BasePrice: 15, CurrentPrice: 15, Active: true,
		},
	}}
	approvalSvc := NewApprovalService(newRequestStoreStub(), eco, market, wallets,
		&approvalStudentsStub{students: roster}, classrooms, nil, nil,
		WithApprovalClock(clock))

	savingsStore := newSavingsStoreStub()
	rate := &models.SavingsRate{ClassroomID: "class-1", LockDays: 30, InterestRate: 10, MinAmount: 50}
	require.NoError(t, savingsStore.CreateRate(context.Background(), rate))
	savingsSvc := NewSavingsService(savingsStore, eco, wallets, nil, WithSavingsClock(clock))

	reasons := []string{"homework sprint", "quiz round", "attendance drive", "helped clean up"}
	refundable := make(map[string]int64)
	openAccounts := make([]string, 0)
	accountOwner := make(map[string]string)

	rng := rand.New(rand.NewSource(20260302))
	for i := 0; i < 400; i++ {
		current = current.Add(time.Duration(4+rng.Intn(20)) * time.Hour)
		student := studentIDs[rng.Intn(len(studentIDs))]

		switch rng.Intn(6) {
		case 0, 1:
			count := 1 + rng.Intn(3)
			ids := make([]string, 0, count)
			for j := 0; j < count; j++ {
				ids = append(ids, studentIDs[rng.Intn(len(studentIDs))])
			}
			_, err := ledgerSvc.Award(context.Background(), "class-1", "teacher-1", dto.AwardRequest{
				StudentIDs: ids,
				Amount:     int64(1 + rng.Intn(40)),
				Reason:     reasons[rng.Intn(len(reasons))],
			})
			if err != nil {
				// an exhausted treasury refuses the award outright
				require.Equal(t, appErrors.ErrInsufficientTreasury.Code, appErrorCode(t, err))
			}
		case 2:
			request, err := approvalSvc.SubmitPurchase(context.Background(), "class-1", student, dto.SubmitPurchaseRequest{ItemID: "item-1"})
			if err != nil {
				continue
			}
			if _, err := approvalSvc.ApprovePurchase(context.Background(), "teacher-1", request.ID); err == nil {
				refundable[student] += request.Price
			}
		case 3:
			request, err := approvalSvc.SubmitTransfer(context.Background(), "class-1", student, dto.SubmitTransferRequest{
				ToStudentID: studentIDs[rng.Intn(len(studentIDs))],
				Amount:      int64(1 + rng.Intn(25)),
			})
			if err != nil {
				continue
			}
			_, _ = approvalSvc.ApproveTransfer(context.Background(), "teacher-1", request.ID)
		case 4:
			if refundable[student] == 0 {
				continue
			}
			amount := 1 + rng.Int63n(refundable[student])
			_, err := ledgerSvc.Refund(context.Background(), "class-1", "teacher-1", dto.RefundRequest{
				StudentID: student, Amount: amount, Reason: "undelivered reward",
			})
			require.NoError(t, err)
			refundable[student] -= amount
		case 5:
			if len(openAccounts) > 0 && rng.Intn(2) == 0 {
				idx := rng.Intn(len(openAccounts))
				id := openAccounts[idx]
				if _, err := savingsSvc.Withdraw(context.Background(), accountOwner[id], id); err == nil {
					openAccounts = append(openAccounts[:idx], openAccounts[idx+1:]...)
				}
				continue
			}
			account, err := savingsSvc.OpenAccount(context.Background(), "class-1", student, dto.OpenAccountRequest{
				RateID: rate.ID,
				Amount: 50 + rng.Int63n(100),
			})
			if err == nil {
				openAccounts = append(openAccounts, account.ID)
				accountOwner[account.ID] = student
			}
		}

		eco.checkInvariants(t)
	}

	// the run exercised every flow, not just the cheap ones
	seen := make(map[models.TransactionType]int)
	for _, entry := range eco.entries {
		seen[entry.Type]++
	}
	require.Greater(t, seen[models.TransactionEmission], 0)
	require.Greater(t, seen[models.TransactionPurchase], 0)
	require.Greater(t, seen[models.TransactionTransfer], 0)
	require.Greater(t, seen[models.TransactionRefund], 0)
	require.Greater(t, seen[models.TransactionSavingsLock], 0)
	require.Less(t, classroom.TreasuryRemaining, classroom.TreasuryTotal)
}
