// Package notify delivers fire-and-forget investor notifications.
//
// Delivery is external collaboration: a failed or slow notification must
// never affect the ledger write it follows, so implementations swallow and
// log their own errors and callers invoke them without waiting on a result.
package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/pishro-capital/ledger-core/internal/ledger/entity"
	"github.com/pishro-capital/ledger-core/pkg/utilities"
)

// Notifier is called after a successful ledger write.
type Notifier interface {
	TransactionRecorded(inv *entity.Investment, txn *entity.Transaction)
	ValuationRecorded(inv *entity.Investment, val *entity.Valuation)
}

// Noop discards all notifications.
type Noop struct{}

func (Noop) TransactionRecorded(*entity.Investment, *entity.Transaction) {}
func (Noop) ValuationRecorded(*entity.Investment, *entity.Valuation)     {}

// ChatDirectory resolves an owning user to a Telegram chat.
type ChatDirectory interface {
	TelegramChatID(ctx context.Context, userID int64) (int64, error)
}

// Telegram sends a short message to the investment owner's chat.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chats  ChatDirectory
	logger *zap.SugaredLogger
}

func NewTelegram(api *tgbotapi.BotAPI, chats ChatDirectory, logger *zap.SugaredLogger) *Telegram {
	return &Telegram{api: api, chats: chats, logger: logger}
}

func (t *Telegram) TransactionRecorded(inv *entity.Investment, txn *entity.Transaction) {
	var text string
	switch txn.Type {
	case entity.TxnDeposit:
		text = fmt.Sprintf("Deposit of %s recorded on %s (ref %s).",
			utilities.FormatToman(txn.Amount), txn.TransactionDate, txn.Reference)
	case entity.TxnWithdrawal:
		text = fmt.Sprintf("Withdrawal of %s recorded on %s (ref %s).",
			utilities.FormatToman(txn.Amount), txn.TransactionDate, txn.Reference)
	case entity.TxnDividend:
		text = fmt.Sprintf("Dividend of %s credited on %s (ref %s).",
			utilities.FormatToman(txn.Amount), txn.TransactionDate, txn.Reference)
	case entity.TxnCancellation:
		text = fmt.Sprintf("Cancellation entry of %s recorded on %s (ref %s).",
			utilities.FormatToman(txn.Amount), txn.TransactionDate, txn.Reference)
	}
	t.send(inv.UserID, text)
}

func (t *Telegram) ValuationRecorded(inv *entity.Investment, val *entity.Valuation) {
	text := fmt.Sprintf("Your portfolio was revalued on %s: new value %s.",
		val.ValuationDate, utilities.FormatToman(val.NewValue))
	t.send(inv.UserID, text)
}

func (t *Telegram) send(userID int64, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chatID, err := t.chats.TelegramChatID(ctx, userID)
	if err != nil {
		t.logger.Warnw("notification skipped, no chat for user", "user_id", userID, "err", err)
		return
	}
	if _, err := t.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		t.logger.Warnw("notification send failed", "user_id", userID, "err", err)
	}
}
