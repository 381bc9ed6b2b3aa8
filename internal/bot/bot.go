// Package bot is the Telegram transport adapter. It translates chat
// commands into ledger calls and formats the results; every rule about
// money lives in the ledger service, not here.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/pishro-capital/ledger-core/internal/ledger"
	ledgerent "github.com/pishro-capital/ledger-core/internal/ledger/entity"
	"github.com/pishro-capital/ledger-core/internal/user"
	userent "github.com/pishro-capital/ledger-core/internal/user/entity"
	"github.com/pishro-capital/ledger-core/pkg/dates"
	"github.com/pishro-capital/ledger-core/pkg/utilities"
)

const handleTimeout = 30 * time.Second

type Bot struct {
	api      *tgbotapi.BotAPI
	users    *user.Service
	ledger   *ledger.Service
	reporter *ledger.Reporter
	logger   *zap.SugaredLogger
}

func New(api *tgbotapi.BotAPI, users *user.Service, ledgerSvc *ledger.Service, reporter *ledger.Reporter, logger *zap.SugaredLogger) *Bot {
	return &Bot{api: api, users: users, ledger: ledgerSvc, reporter: reporter, logger: logger}
}

// Run long-polls for updates until ctx is cancelled. Each update is an
// independent unit of work: one slow or failing command never blocks
// another's in-flight handling.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(update.Message)
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if !msg.IsCommand() {
		b.reply(msg.Chat.ID, "Use /help for the list of commands.")
		return
	}

	var text string
	switch msg.Command() {
	case "start", "help":
		text = b.helpText(ctx, msg.From.ID)
	case "register":
		text = b.cmdRegister(ctx, msg)
	case "portfolio":
		text = b.cmdPortfolio(ctx, msg)
	case "history":
		text = b.cmdHistory(ctx, msg)
	case "balance":
		text = b.cmdBalance(ctx, msg)
	case "deposit":
		text = b.cmdRecord(ctx, msg, ledgerent.TxnDeposit)
	case "withdraw":
		text = b.cmdRecord(ctx, msg, ledgerent.TxnWithdrawal)
	case "dividend":
		text = b.cmdRecord(ctx, msg, ledgerent.TxnDividend)
	case "setvalue":
		text = b.cmdSetValue(ctx, msg)
	case "setpercent":
		text = b.cmdSetPercent(ctx, msg)
	case "verifyuser":
		text = b.cmdVerifyUser(ctx, msg)
	case "overview":
		text = b.cmdOverview(ctx, msg)
	default:
		text = "Unknown command. Use /help."
	}
	b.reply(msg.Chat.ID, text)
}

func (b *Bot) reply(chatID int64, text string) {
	if text == "" {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warnw("send failed", "chat_id", chatID, "err", err)
	}
}

func (b *Bot) helpText(ctx context.Context, telegramID int64) string {
	base := `Commands:
/register <phone> <name> - register as an investor
/portfolio - your investments and current values
/history <investment-id> - recent ledger entries
/balance <investment-id> <yyyy-mm-dd> - raw ledger balance at a date`
	u, err := b.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return base
	}
	if u.Role.CanRecord() {
		base += `
/deposit <investment-id> <amount> [date] - record a deposit
/withdraw <investment-id> <amount> [date] - record a withdrawal
/dividend <investment-id> <amount> [date] - record a dividend
/overview - totals across all investments`
	}
	if u.Role.CanValuate() {
		base += `
/setvalue <investment-id> <amount> [date] - assert portfolio value
/setpercent <investment-id> <percent> [date] - assert change in percent
/verifyuser <phone> - verify a registered user`
	}
	return base
}

// identify resolves the sender, requiring a verified account.
func (b *Bot) identify(ctx context.Context, msg *tgbotapi.Message) (*userent.User, string) {
	u, err := b.users.GetByTelegramID(ctx, msg.From.ID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, "You are not registered. Use /register <phone> <name>."
		}
		b.logger.Errorw("identify failed", "telegram_id", msg.From.ID, "err", err)
		return nil, "Something went wrong, try again later."
	}
	if !u.IsVerified {
		return nil, "Your account is awaiting verification."
	}
	return u, ""
}

func (b *Bot) cmdRegister(ctx context.Context, msg *tgbotapi.Message) string {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		return "Usage: /register <phone> <name>"
	}
	phone, name := args[0], strings.Join(args[1:], " ")
	u, err := b.users.Register(ctx, msg.From.ID, phone, name)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidPhone):
			return "That phone number does not look right (expected 09xxxxxxxxx)."
		case errors.Is(err, user.ErrPhoneInUse), errors.Is(err, user.ErrTelegramInUse):
			return "An account already exists for this phone or chat."
		}
		b.logger.Errorw("register failed", "err", err)
		return "Registration failed, try again later."
	}
	return fmt.Sprintf("Registered %s. An accountant will verify your account shortly.", u.Name)
}

func (b *Bot) cmdPortfolio(ctx context.Context, msg *tgbotapi.Message) string {
	u, deny := b.identify(ctx, msg)
	if deny != "" {
		return deny
	}
	invs, err := b.ledger.ListInvestmentsByUser(ctx, u.ID)
	if err != nil {
		b.logger.Errorw("portfolio failed", "user_id", u.ID, "err", err)
		return "Could not load your portfolio."
	}
	if len(invs) == 0 {
		return "No investments are registered for you."
	}
	var sb strings.Builder
	for _, inv := range invs {
		summary, err := b.ledger.GetPortfolioSummary(ctx, inv.ID)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "Investment %d (%s, %s)\n", inv.ID, inv.ContractType, inv.Status)
		fmt.Fprintf(&sb, "  initial:     %s\n", utilities.FormatToman(summary.InitialCapital))
		fmt.Fprintf(&sb, "  deposits:    %s\n", utilities.FormatToman(summary.Deposits))
		fmt.Fprintf(&sb, "  withdrawals: %s\n", utilities.FormatToman(summary.Withdrawals))
		fmt.Fprintf(&sb, "  dividends:   %s\n", utilities.FormatToman(summary.Dividends))
		fmt.Fprintf(&sb, "  current:     %s (%+.2f%%)\n", utilities.FormatToman(summary.CurrentValue), summary.ProfitPercentage)
		fmt.Fprintf(&sb, "  updated:     %s\n", summary.LastUpdated)
	}
	return sb.String()
}

func (b *Bot) cmdHistory(ctx context.Context, msg *tgbotapi.Message) string {
	u, deny := b.identify(ctx, msg)
	if deny != "" {
		return deny
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return "Usage: /history <investment-id>"
	}
	invID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "The investment id must be a number."
	}
	if denied := b.denyForeign(ctx, u, invID); denied != "" {
		return denied
	}
	txns, total, err := b.ledger.TransactionHistory(ctx, invID, 10, 0)
	if err != nil {
		return b.ledgerErrText(err)
	}
	if total == 0 {
		return "The ledger is empty."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Last %d of %d entries:\n", len(txns), total)
	for _, t := range txns {
		fmt.Fprintf(&sb, "%s  %-12s %s (ref %s)\n", t.TransactionDate, t.Type, utilities.FormatToman(t.Amount), t.Reference)
	}
	return sb.String()
}

func (b *Bot) cmdBalance(ctx context.Context, msg *tgbotapi.Message) string {
	u, deny := b.identify(ctx, msg)
	if deny != "" {
		return deny
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return "Usage: /balance <investment-id> <yyyy-mm-dd>"
	}
	invID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "Usage: /balance <investment-id> <yyyy-mm-dd>"
	}
	asOf, err := dates.Parse(args[1])
	if err != nil {
		return "Dates look like 2025-01-30."
	}
	if denied := b.denyForeign(ctx, u, invID); denied != "" {
		return denied
	}
	balance, err := b.ledger.BalanceAsOf(ctx, invID, asOf)
	if err != nil {
		return b.ledgerErrText(err)
	}
	return fmt.Sprintf("Ledger balance on %s: %s", asOf, utilities.FormatToman(balance))
}

// cmdRecord handles /deposit, /withdraw and /dividend.
func (b *Bot) cmdRecord(ctx context.Context, msg *tgbotapi.Message, typ ledgerent.TransactionType) string {
	u, deny := b.identify(ctx, msg)
	if deny != "" {
		return deny
	}
	if !u.Role.CanRecord() {
		return "Only accountants can record ledger entries."
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		return fmt.Sprintf("Usage: /%s <investment-id> <amount> [date]", typ)
	}
	invID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "The investment id must be a number."
	}
	amount, err := utilities.ParseAmount(args[1])
	if err != nil {
		return "The amount must be a positive number, like 500000 or 1,500,000."
	}
	txnDate := dates.Today()
	if len(args) >= 3 {
		if txnDate, err = dates.Parse(args[2]); err != nil {
			return "Dates look like 2025-01-30."
		}
	}
	txn, err := b.ledger.RecordTransaction(ctx, invID, typ, amount, txnDate, u.ID, nil)
	if err != nil {
		return b.ledgerErrText(err)
	}
	return fmt.Sprintf("Recorded %s of %s on %s (ref %s).", typ, utilities.FormatToman(txn.Amount), txn.TransactionDate, txn.Reference)
}

func (b *Bot) cmdSetValue(ctx context.Context, msg *tgbotapi.Message) string {
	u, deny := b.identify(ctx, msg)
	if deny != "" {
		return deny
	}
	if !u.Role.CanValuate() {
		return "Only admins can assert portfolio values."
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		return "Usage: /setvalue <investment-id> <amount> [date]"
	}
	invID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "The investment id must be a number."
	}
	amount, err := utilities.ParseAmount(args[1])
	if err != nil {
		return "The amount must be a positive number."
	}
	valDate := dates.Today()
	if len(args) >= 3 {
		if valDate, err = dates.Parse(args[2]); err != nil {
			return "Dates look like 2025-01-30."
		}
	}
	val, err := b.ledger.RecordValuation(ctx, invID, ledger.ValuationInput{
		Mode:      ledger.ModeAbsolute,
		NewValue:  amount,
		Date:      valDate,
		UpdatedBy: u.ID,
	})
	if err != nil {
		return b.ledgerErrText(err)
	}
	old := "-"
	if val.OldValue.Valid {
		old = utilities.FormatToman(val.OldValue.Decimal)
	}
	return fmt.Sprintf("Valuation recorded: %s -> %s on %s.", old, utilities.FormatToman(val.NewValue), val.ValuationDate)
}

func (b *Bot) cmdSetPercent(ctx context.Context, msg *tgbotapi.Message) string {
	u, deny := b.identify(ctx, msg)
	if deny != "" {
		return deny
	}
	if !u.Role.CanValuate() {
		return "Only admins can assert portfolio values."
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		return "Usage: /setpercent <investment-id> <percent> [date]"
	}
	invID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "The investment id must be a number."
	}
	percent, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return "The percent must be a number, like 25 or -3.5."
	}
	valDate := dates.Today()
	if len(args) >= 3 {
		if valDate, err = dates.Parse(args[2]); err != nil {
			return "Dates look like 2025-01-30."
		}
	}
	val, err := b.ledger.RecordValuation(ctx, invID, ledger.ValuationInput{
		Mode:      ledger.ModePercentage,
		Percent:   percent,
		Date:      valDate,
		UpdatedBy: u.ID,
	})
	if err != nil {
		return b.ledgerErrText(err)
	}
	return fmt.Sprintf("Valuation recorded: %+.2f%% -> %s on %s.", percent, utilities.FormatToman(val.NewValue), val.ValuationDate)
}

func (b *Bot) cmdVerifyUser(ctx context.Context, msg *tgbotapi.Message) string {
	u, deny := b.identify(ctx, msg)
	if deny != "" {
		return deny
	}
	if !u.Role.CanValuate() {
		return "Only admins can verify users."
	}
	phone := strings.TrimSpace(msg.CommandArguments())
	if phone == "" {
		return "Usage: /verifyuser <phone>"
	}
	target, err := b.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) || errors.Is(err, user.ErrInvalidPhone) {
			return "No registered user with that phone."
		}
		b.logger.Errorw("verifyuser lookup failed", "err", err)
		return "Something went wrong, try again later."
	}
	if err := b.users.Verify(ctx, target.ID); err != nil {
		b.logger.Errorw("verifyuser failed", "user_id", target.ID, "err", err)
		return "Verification failed, try again later."
	}
	return fmt.Sprintf("%s is now verified.", target.Name)
}

func (b *Bot) cmdOverview(ctx context.Context, msg *tgbotapi.Message) string {
	u, deny := b.identify(ctx, msg)
	if deny != "" {
		return deny
	}
	if !u.Role.CanRecord() {
		return "Only accountants and admins can view totals."
	}
	stats, err := b.reporter.Overview(ctx)
	if err != nil {
		b.logger.Errorw("overview failed", "err", err)
		return "Could not load the overview."
	}
	return fmt.Sprintf(
		"Investments: %d\nTotal capital: %s\nTotal value: %s\nTotal profit: %s\nAverage ROI: %.2f%%",
		stats.Investments,
		utilities.FormatToman(stats.TotalInitialCapital),
		utilities.FormatToman(stats.TotalCurrentValue),
		utilities.FormatToman(stats.TotalProfit),
		stats.AverageROI,
	)
}

// denyForeign hides investments an investor does not own. Accountants and
// admins see everything.
func (b *Bot) denyForeign(ctx context.Context, u *userent.User, invID int64) string {
	if u.Role.CanRecord() {
		return ""
	}
	inv, err := b.ledger.GetInvestment(ctx, invID)
	if err != nil {
		return b.ledgerErrText(err)
	}
	if inv.UserID != u.ID {
		return "No such investment in your portfolio."
	}
	return ""
}

func (b *Bot) ledgerErrText(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInvestmentNotFound):
		return "No such investment."
	case errors.Is(err, ledger.ErrAmountNotPositive):
		return "The amount must be positive."
	case errors.Is(err, ledger.ErrAmountTooLarge):
		return "That amount is larger than the system accepts; check for typos."
	case errors.Is(err, ledger.ErrPercentOutOfRange):
		return "The percent must be between -100 and 1000."
	case errors.Is(err, ledger.ErrMissingDate):
		return "Dates look like 2025-01-30."
	}
	b.logger.Errorw("ledger command failed", "err", err)
	return "Something went wrong, try again later."
}
