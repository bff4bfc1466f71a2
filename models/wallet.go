package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Wallet struct {
	ID        int             `gorm:"primary_key" json:"id"`
	UserId    int             `gorm:"not null;uniqueIndex" json:"user_id"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// WalletTransaction is append-only. Amount is signed: credits positive, debits negative.
// Balance always equals the sum of amounts whose status is not failed.
type WalletTransaction struct {
	ID          int                     `gorm:"primary_key" json:"id"`
	WalletId    int                     `gorm:"index;not null" json:"wallet_id"`
	OrderId     *int                    `gorm:"index" json:"order_id"`
	Type        WalletTransactionType   `gorm:"size:20;not null" json:"transaction_type"`
	Status      WalletTransactionStatus `gorm:"size:20;not null" json:"transaction_status"`
	Amount      decimal.Decimal         `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Description string                  `gorm:"size:255" json:"description"`
	CreatedAt   time.Time               `gorm:"autoCreateTime;index" json:"transaction_date"`
}

// WalletEntry describes one credit or debit to apply.
type WalletEntry struct {
	UserId      int
	Amount      decimal.Decimal
	OrderId     *int
	Status      WalletTransactionStatus
	Description string
}

// EnsureWallet returns the user's wallet, creating an empty one when missing.
func EnsureWallet(tx *gorm.DB, userId int) (*Wallet, error) {
	wallet := Wallet{UserId: userId, Balance: decimal.Zero}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&wallet).Error; err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}
	if err := tx.Where("user_id = ?", userId).First(&wallet).Error; err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	return &wallet, nil
}

// CreditWallet upserts the wallet and appends a credit. A failed credit is
// recorded but leaves the balance untouched.
func CreditWallet(tx *gorm.DB, entry WalletEntry) (*WalletTransaction, error) {
	if !entry.Amount.IsPositive() {
		return nil, utils.NewValidationError("Amount must be greater than zero")
	}
	status := entry.Status
	if status == "" {
		status = WalletTransactionStatusCompleted
	}
	if !status.IsValid() {
		return nil, utils.NewValidationError("Invalid payment status")
	}

	wallet, err := EnsureWallet(tx, entry.UserId)
	if err != nil {
		return nil, err
	}
	if status != WalletTransactionStatusFailed {
		if err := tx.Model(&Wallet{}).
			Where("id = ?", wallet.ID).
			Update("balance", gorm.Expr("balance + ?", entry.Amount)).Error; err != nil {
			return nil, fmt.Errorf("credit wallet: %w", err)
		}
	}

	transaction := WalletTransaction{
		WalletId:    wallet.ID,
		OrderId:     entry.OrderId,
		Type:        WalletTransactionTypeCredit,
		Status:      status,
		Amount:      entry.Amount,
		Description: entry.Description,
	}
	if err := tx.Create(&transaction).Error; err != nil {
		return nil, fmt.Errorf("append wallet credit: %w", err)
	}
	return &transaction, nil
}

// DebitWallet subtracts amount only when the balance covers it.
func DebitWallet(tx *gorm.DB, entry WalletEntry) (*WalletTransaction, error) {
	if entry.Amount.IsNegative() {
		return nil, utils.NewValidationError("Amount must not be negative")
	}

	var wallet Wallet
	if err := tx.Where("user_id = ?", entry.UserId).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewValidationError("Insufficient balance in your wallet. Please add balance first.")
		}
		return nil, err
	}

	res := tx.Model(&Wallet{}).
		Where("id = ? AND balance >= ?", wallet.ID, entry.Amount).
		Update("balance", gorm.Expr("balance - ?", entry.Amount))
	if res.Error != nil {
		return nil, fmt.Errorf("debit wallet: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewValidationError("Insufficient balance in your wallet")
	}

	transaction := WalletTransaction{
		WalletId:    wallet.ID,
		OrderId:     entry.OrderId,
		Type:        WalletTransactionTypeDebit,
		Status:      WalletTransactionStatusCompleted,
		Amount:      entry.Amount.Neg(),
		Description: entry.Description,
	}
	if err := tx.Create(&transaction).Error; err != nil {
		return nil, fmt.Errorf("append wallet debit: %w", err)
	}
	return &transaction, nil
}

type WalletView struct {
	Wallet       Wallet              `json:"wallet"`
	Transactions []WalletTransaction `json:"transactions"`
}

// GetWalletView returns an empty wallet for users who never had one.
func GetWalletView(ctx context.Context, db *gorm.DB, userId int) (*WalletView, error) {
	view := WalletView{
		Wallet:       Wallet{UserId: userId, Balance: decimal.Zero},
		Transactions: []WalletTransaction{},
	}
	err := db.WithContext(ctx).Where("user_id = ?", userId).First(&view.Wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &view, nil
	}
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).
		Where("wallet_id = ?", view.Wallet.ID).
		Order("created_at DESC, id DESC").
		Find(&view.Transactions).Error; err != nil {
		return nil, err
	}
	return &view, nil
}

type TopUpInput struct {
	Amount        decimal.Decimal         `json:"amount"`
	PaymentStatus WalletTransactionStatus `json:"payment_status" binding:"required,oneof=pending completed failed"`
}

func TopUpWallet(ctx context.Context, db *gorm.DB, userId int, input *TopUpInput) (*WalletView, error) {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := CreditWallet(tx, WalletEntry{
			UserId:      userId,
			Amount:      input.Amount,
			Status:      input.PaymentStatus,
			Description: "Wallet top-up",
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return GetWalletView(ctx, db, userId)
}

type ReferralInput struct {
	ReferralCode string `json:"referral_code" binding:"required"`
}

// RedeemReferral credits reward to both the current user and the code owner, once per user.
func RedeemReferral(ctx context.Context, db *gorm.DB, userId int, code string, reward decimal.Decimal) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("User not found")
			}
			return err
		}
		if user.ReferredBy != nil {
			return utils.NewValidationError("Referral code already applied")
		}

		var referrer User
		if err := tx.Where("referral_code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&referrer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("Code is invalid. There is no user exists with this code.")
			}
			return err
		}
		if referrer.ID == user.ID {
			return utils.NewValidationError("You cannot use your own referral code")
		}

		if _, err := CreditWallet(tx, WalletEntry{UserId: user.ID, Amount: reward, Description: "Referral reward"}); err != nil {
			return err
		}
		if _, err := CreditWallet(tx, WalletEntry{UserId: referrer.ID, Amount: reward, Description: "Referral reward"}); err != nil {
			return err
		}
		return tx.Model(&User{}).Where("id = ?", user.ID).Update("referred_by", referrer.ID).Error
	})
}

// WalletBalanceDrift is a wallet whose balance disagrees with its transactions.
type WalletBalanceDrift struct {
	WalletId       int             `json:"wallet_id"`
	UserId         int             `json:"user_id"`
	Balance        decimal.Decimal `json:"balance"`
	TransactionSum decimal.Decimal `json:"transaction_sum"`
}

func FindWalletBalanceDrift(ctx context.Context, db *gorm.DB) ([]WalletBalanceDrift, error) {
	var rows []WalletBalanceDrift
	err := db.WithContext(ctx).Raw(`
SELECT w.id AS wallet_id, w.user_id, w.balance, COALESCE(SUM(t.amount), 0) AS transaction_sum
FROM wallets w
LEFT JOIN wallet_transactions t ON t.wallet_id = w.id AND t.status <> ?
GROUP BY w.id, w.user_id, w.balance
HAVING w.balance <> COALESCE(SUM(t.amount), 0)`, WalletTransactionStatusFailed).Scan(&rows).Error
	return rows, err
}
